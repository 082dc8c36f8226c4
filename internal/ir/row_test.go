package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowFromMap(t *testing.T) {
	row, err := RowFromMap(map[string]any{"id": 1, "name": "Ada", "bio": nil})
	require.NoError(t, err)
	assert.Equal(t, Row{"id": Int(1), "name": String("Ada"), "bio": Null{}}, row)

	_, err = RowFromMap(map[string]any{"score": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "score"`)
}

func TestRowGetHas(t *testing.T) {
	row := Row{"a": Int(1), "b": Null{}, "c": nil}

	assert.Equal(t, Int(1), row.Get("a"))
	assert.Equal(t, Null{}, row.Get("c"))
	assert.Equal(t, Null{}, row.Get("missing"))
	assert.True(t, row.Has("a"))
	assert.False(t, row.Has("b"))
	assert.False(t, row.Has("missing"))
}

func TestRowCloneIsIndependent(t *testing.T) {
	row := Row{"a": Int(1)}
	clone := row.Clone()
	clone["a"] = Int(2)
	assert.Equal(t, Int(1), row["a"])

	var nilRow Row
	assert.NotNil(t, nilRow.Clone())
}

func TestRowMergeReportsChange(t *testing.T) {
	row := Row{"a": Int(1)}

	assert.False(t, row.Merge(Row{"a": Int(1)}))
	assert.True(t, row.Merge(Row{"a": Int(2)}))
	assert.True(t, row.Merge(Row{"b": Null{}}), "new column counts even when null")
	assert.Equal(t, Row{"a": Int(2), "b": Null{}}, row)
}

func TestRowOnlyWithout(t *testing.T) {
	row := Row{"id": Int(1), "name": String("Ada"), "bio": String("x")}

	assert.Equal(t, Row{"id": Int(1), "name": String("Ada")}, row.Only([]string{"id", "name", "missing"}))
	assert.Equal(t, Row{"id": Int(1), "bio": String("x")}, row.Without("name"))
	assert.Len(t, row, 3)
}

func TestRowEqual(t *testing.T) {
	assert.True(t, Row{"a": Null{}}.Equal(Row{"a": nil}))
	assert.False(t, Row{"a": Int(1)}.Equal(Row{"b": Int(1)}))
	assert.False(t, Row{"a": Int(1)}.Equal(Row{"a": Int(1), "b": Int(2)}))
}

func TestDiff(t *testing.T) {
	known := Row{"id": Int(1), "name": String("Ada"), "gone": Int(9)}
	fresh := Row{"id": Int(1), "name": String("Ada L"), "bio": Null{}}

	assert.Equal(t, Row{"name": String("Ada L"), "bio": Null{}}, Diff(fresh, known))
	assert.Empty(t, Diff(known, known))
}

func TestRowSortedKeys(t *testing.T) {
	row := Row{"b": Int(1), "a": Int(2), "\uE000": Int(3), "\U00010000": Int(4)}
	assert.Equal(t, []string{"a", "b", "\U00010000", "\uE000"}, row.SortedKeys())
}

func TestRowJSON(t *testing.T) {
	row := Row{"z": Int(1), "a": String("x"), "n": Null{}, "t": Bool(true)}

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","n":null,"t":true,"z":1}`, string(data))

	var back Row
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, row, back)

	assert.Error(t, json.Unmarshal([]byte(`{"f":1.5}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &back))
}
