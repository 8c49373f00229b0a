package fiber

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFLSMap_GetSetAndOverwrite(t *testing.T) {
	var m flsMap
	key := NewFLSKey()

	require.Nil(t, m.get(key))

	m.set(key, "first", nil, false)
	require.Equal(t, "first", m.get(key))

	m.set(key, "second", nil, false)
	require.Equal(t, "second", m.get(key))
}

func TestFLSMap_CleanupExistingRunsOnOverwrite(t *testing.T) {
	var m flsMap
	key := NewFLSKey()

	var cleaned any
	m.set(key, "first", func(v any) { cleaned = v }, false)
	m.set(key, "second", nil, true)

	require.Equal(t, "first", cleaned)
	require.Equal(t, "second", m.get(key))
}

func TestFLSMap_SetNilDeletes(t *testing.T) {
	var m flsMap
	key := NewFLSKey()
	m.set(key, "value", nil, false)
	m.set(key, nil, nil, false)
	require.Nil(t, m.get(key))
}

func TestFLSMap_DrainRunsAllCleanupsAndEmpties(t *testing.T) {
	var m flsMap
	k1, k2 := NewFLSKey(), NewFLSKey()

	var seen []any
	m.set(k1, "a", func(v any) { seen = append(seen, v) }, false)
	m.set(k2, "b", func(v any) { seen = append(seen, v) }, false)

	entries := m.drain()
	require.Len(t, entries, 2)
	for _, e := range entries {
		e.cleanup(e.data)
	}
	require.ElementsMatch(t, []any{"a", "b"}, seen)

	require.Nil(t, m.get(k1))
	require.Nil(t, m.get(k2))
}

func TestFLSKey_IdentityNotEquality(t *testing.T) {
	k1 := NewFLSKey()
	k2 := NewFLSKey()
	require.NotSame(t, k1, k2)

	var m flsMap
	m.set(k1, "one", nil, false)
	m.set(k2, "two", nil, false)
	require.Equal(t, "one", m.get(k1))
	require.Equal(t, "two", m.get(k2))
}
