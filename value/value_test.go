package value_test

import (
	"testing"

	"github.com/jibjab-lang/jj/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    value.Value
		want bool
	}{
		{"true bool", value.NewBool(true), true},
		{"false bool", value.NewBool(false), false},
		{"nonzero int", value.NewInt(3), true},
		{"zero int", value.NewInt(0), false},
		{"negative int", value.NewInt(-1), true},
		{"nonzero double", value.NewDouble(0.5), true},
		{"zero double", value.NewDouble(0), false},
		{"nonempty string", value.NewString("x"), true},
		{"empty string", value.NewString(""), false},
		{"none", value.NewNone(), false},
		{"nonempty list", value.NewList([]value.Value{value.NewInt(1)}), true},
		{"empty list", value.NewList(nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Truthy())
		})
	}
}

func TestEquals_SameConcreteTypeOnly(t *testing.T) {
	assert.True(t, value.NewInt(3).Equals(value.NewInt(3)))
	assert.False(t, value.NewInt(3).Equals(value.NewInt(4)))
	assert.True(t, value.NewDouble(3).Equals(value.NewDouble(3)))
	// int/double never compare equal across tags
	assert.False(t, value.NewInt(3).Equals(value.NewDouble(3)))
	assert.True(t, value.NewNone().Equals(value.NewNone()))
	assert.True(t, value.NewString("a").Equals(value.NewString("a")))
	assert.False(t, value.NewString("1").Equals(value.NewInt(1)))
}

func TestEquals_Containers(t *testing.T) {
	a := value.NewList([]value.Value{value.NewInt(1), value.NewString("x")})
	b := value.NewList([]value.Value{value.NewInt(1), value.NewString("x")})
	c := value.NewList([]value.Value{value.NewInt(1)})
	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))

	m1 := value.NewMap([]string{"k"}, map[string]value.Value{"k": value.NewInt(1)})
	m2 := value.NewMap([]string{"k"}, map[string]value.Value{"k": value.NewInt(1)})
	m3 := value.NewMap([]string{"k"}, map[string]value.Value{"k": value.NewInt(2)})
	assert.True(t, m1.Equals(m2))
	assert.False(t, m1.Equals(m3))
}

func TestAdd_WideningIsCommutativeOnType(t *testing.T) {
	a := value.Add(value.NewInt(1), value.NewDouble(2.5))
	b := value.Add(value.NewDouble(2.5), value.NewInt(1))
	assert.Equal(t, value.Double, a.Kind)
	assert.Equal(t, 3.5, a.Double)
	assert.True(t, a.Equals(b))

	ii := value.Add(value.NewInt(2), value.NewInt(3))
	assert.Equal(t, value.Int, ii.Kind)
	assert.Equal(t, int64(5), ii.Int)
}

func TestAdd_Strings(t *testing.T) {
	ss := value.Add(value.NewString("a"), value.NewString("b"))
	assert.Equal(t, value.NewString("ab"), ss)

	// mixed operands fall back to stringify-then-concatenate
	sn := value.Add(value.NewString("a"), value.NewInt(1))
	assert.Equal(t, value.NewString("a1"), sn)
	ns := value.Add(value.NewInt(1), value.NewString("a"))
	assert.Equal(t, value.NewString("1a"), ns)
	nb := value.Add(value.NewBool(true), value.NewNone())
	assert.Equal(t, value.NewString("truenone"), nb)
}

func TestArith(t *testing.T) {
	v, err := value.Arith("-", value.NewInt(5), value.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Int)

	v, err = value.Arith("*", value.NewInt(4), value.NewDouble(0.5))
	require.NoError(t, err)
	assert.Equal(t, value.Double, v.Kind)
	assert.Equal(t, 2.0, v.Double)

	v, err = value.Arith("/", value.NewInt(7), value.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Int)

	v, err = value.Arith("%", value.NewInt(7), value.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int)
}

func TestArith_IntegerDivisionByZero(t *testing.T) {
	_, err := value.Arith("/", value.NewInt(1), value.NewInt(0))
	assert.Error(t, err)
	_, err = value.Arith("%", value.NewInt(1), value.NewInt(0))
	assert.Error(t, err)

	// double division follows host arithmetic instead
	v, err := value.Arith("/", value.NewDouble(1), value.NewDouble(0))
	require.NoError(t, err)
	assert.Equal(t, value.Double, v.Kind)
}

func TestCompare(t *testing.T) {
	for _, tt := range []struct {
		op   string
		a, b value.Value
		want bool
	}{
		{"<", value.NewInt(1), value.NewInt(2), true},
		{"<=", value.NewInt(2), value.NewInt(2), true},
		{">", value.NewInt(1), value.NewInt(2), false},
		{">=", value.NewDouble(2.5), value.NewInt(2), true},
		{"<", value.NewInt(3), value.NewDouble(3.5), true},
	} {
		v, err := value.Compare(tt.op, tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, v.Bool, "%v %s %v", tt.a, tt.op, tt.b)
	}

	_, err := value.Compare("<", value.NewString("a"), value.NewInt(1))
	assert.Error(t, err)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "42", value.Stringify(value.NewInt(42)))
	assert.Equal(t, "-7", value.Stringify(value.NewInt(-7)))
	assert.Equal(t, "2.5", value.Stringify(value.NewDouble(2.5)))
	// whole doubles keep one fractional digit
	assert.Equal(t, "4.0", value.Stringify(value.NewDouble(4)))
	assert.Equal(t, "true", value.Stringify(value.NewBool(true)))
	assert.Equal(t, "none", value.Stringify(value.NewNone()))
	assert.Equal(t, "[1, 2]", value.Stringify(value.NewList([]value.Value{value.NewInt(1), value.NewInt(2)})))
	assert.Equal(t, "{a: 1}", value.Stringify(value.NewMap([]string{"a"}, map[string]value.Value{"a": value.NewInt(1)})))
}
