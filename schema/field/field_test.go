package field_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/formulite/schema/field"
)

func TestParse(t *testing.T) {
	tests := []struct {
		typ  string
		want field.Descriptor
	}{
		{"int", field.Int("a")},
		{"INTEGER", field.Int("a")},
		{"TEXT", field.String("a")},
		{"str", field.String("a")},
		{"REAL", field.Float("a")},
		{"boolean", field.Bool("a")},
		{"[int]", field.List("a", "int")},
		{"[TEXT]", field.List("a", "string")},
		{"[Product]", field.List("a", "Product")},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			d, err := field.Parse("a", tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}

	_, err := field.Parse("a", "blob")
	require.Error(t, err)
	_, err = field.Parse("a", "[]")
	require.Error(t, err)
}

func TestDescriptor(t *testing.T) {
	d := field.List("items", "Product")
	assert.True(t, d.IsList())
	assert.Equal(t, "[Product]", d.TypeName())
	_, scalar := d.ElemType()
	assert.False(t, scalar)

	d = field.List("tags", "string")
	et, scalar := d.ElemType()
	assert.True(t, scalar)
	assert.Equal(t, field.TypeString, et)

	assert.Equal(t, "prod_id int", field.Int("prod_id").String())
	assert.Equal(t, "INTEGER", field.TypeInt.SQLType())
	assert.Empty(t, field.TypeList.SQLType())
	assert.False(t, field.TypeList.Scalar())
	assert.False(t, field.TypeInvalid.Valid())
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		typ  field.Type
		in   any
		want any
	}{
		{"int", field.TypeInt, 1, int64(1)},
		{"int32", field.TypeInt, int32(7), int64(7)},
		{"integral float", field.TypeInt, float64(3), int64(3)},
		{"numeric string", field.TypeInt, "42", int64(42)},
		{"float from int", field.TypeFloat, 2, float64(2)},
		{"bytes to string", field.TypeString, []byte("soap"), "soap"},
		{"bool from int64", field.TypeBool, int64(1), true},
		{"bool from zero", field.TypeBool, int64(0), false},
		{"nil", field.TypeString, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := field.Convert(tt.typ, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := field.Convert(field.TypeInt, 1.5)
	require.Error(t, err)
	_, err = field.Convert(field.TypeBool, "maybe")
	require.Error(t, err)
}
