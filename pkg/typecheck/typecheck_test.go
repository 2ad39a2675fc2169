package typecheck_test

import (
	"testing"

	"github.com/leapstack-labs/sqlsense/pkg/typecheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want typecheck.Family
	}{
		{"int", typecheck.Integer},
		{"BIGINT", typecheck.Integer},
		{"int unsigned", typecheck.Integer},
		{"decimal(10,2)", typecheck.Decimal},
		{"money", typecheck.Decimal},
		{"nvarchar(max)", typecheck.String},
		{"character varying", typecheck.String},
		{"datetime2(7)", typecheck.DateTime},
		{"timestamp without time zone", typecheck.DateTime},
		{"bit", typecheck.Boolean},
		{"varbinary(16)", typecheck.Binary},
		{"uniqueidentifier", typecheck.UniqueIdentifier},
		{"uuid", typecheck.UniqueIdentifier},
		{"sql_variant", typecheck.Unknown},
		{"", typecheck.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, typecheck.Classify(tt.in))
		})
	}
}

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"int", "bigint", true},
		{"int", "decimal(10,2)", true},
		{"int", "nvarchar(10)", false},
		{"uniqueidentifier", "int", false},
		{"datetime", "date", true},
		{"datetime", "varchar(20)", false},
		{"sql_variant", "int", true},
		{"int", "", true},
		{"bit", "int", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"="+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, typecheck.IsCompatible(tt.a, tt.b))
			assert.Equal(t, tt.want, typecheck.IsCompatible(tt.b, tt.a), "symmetric")
		})
	}
}

func TestCustomPolicy(t *testing.T) {
	pair, err := typecheck.ParsePair("uniqueidentifier:string")
	require.NoError(t, err)

	p := typecheck.NewPolicy(pair)
	assert.True(t, p.IsCompatible("uniqueidentifier", "nvarchar(36)"))
	assert.False(t, p.IsCompatible("int", "decimal"), "integer/decimal is not implied")
	assert.Equal(t, [][2]typecheck.Family{{typecheck.String, typecheck.UniqueIdentifier}}, p.Pairs())

	_, err = typecheck.ParsePair("integer")
	assert.Error(t, err)
	_, err = typecheck.ParsePair("integer:blob")
	assert.Error(t, err)
}

func TestCheckEqualityWarning(t *testing.T) {
	w, ok := typecheck.CheckEqualityWarning("uniqueidentifier", "int")
	require.True(t, ok)
	assert.Equal(t, typecheck.TypeMismatch, w.Kind)
	assert.Equal(t, typecheck.UniqueIdentifier, w.Left)
	assert.Equal(t, typecheck.Integer, w.Right)
	assert.Contains(t, w.Message(), "uniqueidentifier")

	_, ok = typecheck.CheckEqualityWarning("int", "numeric(18,0)")
	assert.False(t, ok)
}
