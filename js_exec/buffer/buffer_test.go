package buffer

import (
	"math"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataBuffer(t *testing.T) {
	b := FromBytes([]byte{1, 4, 5, 6})
	require.NoError(t, b.Insert(FromBytes([]byte{2, 3}), 1))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, b.Bytes())

	require.NoError(t, b.Delete(2, 2))
	assert.Equal(t, []byte{1, 2, 5, 6}, b.Bytes())

	sub, err := b.Sub(1, 2)
	require.NoError(t, err)
	assert.Equal(t, "0205", sub.Hex())
	require.NoError(t, sub.SetByte(0, 0xff))
	assert.Equal(t, byte(2), b.Bytes()[1])

	require.NoError(t, b.SetLen(6))
	assert.Equal(t, []byte{1, 2, 5, 6, 0, 0}, b.Bytes())
	require.NoError(t, b.SetLen(1))
	assert.Equal(t, "01", b.Hex())

	assert.True(t, b.Equal(b.Clone()))
	assert.False(t, b.Equal(nil))
}

func TestDataBufferBounds(t *testing.T) {
	b, err := New(2)
	require.NoError(t, err)
	_, err = b.Byte(2)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, b.SetByte(-1, 0), ErrOutOfRange)
	assert.ErrorIs(t, b.Delete(1, 2), ErrOutOfRange)
	assert.ErrorIs(t, b.Insert(FromBytes([]byte{1}), 3), ErrOutOfRange)
	assert.ErrorIs(t, b.SetLen(-1), ErrOutOfRange)
	_, err = b.Sub(0, 3)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = FromHex("zz")
	assert.Error(t, err)
}

func TestDataBufferSpanOverflow(t *testing.T) {
	b := FromBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, b.Delete(1, math.MaxInt), ErrOutOfRange)
	_, err := b.Sub(1, math.MaxInt)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = b.Sub(4, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, []byte{1, 2, 3}, b.Bytes())

	assert.ErrorIs(t, b.SetLen(math.MaxInt), ErrOutOfRange)
	assert.ErrorIs(t, b.SetLen(MaxLen+1), ErrOutOfRange)
	_, err = New(math.MaxInt)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = New(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func newRuntime(t *testing.T) *goja.Runtime {
	t.Helper()
	vm := goja.New()
	module := vm.NewObject()
	require.NoError(t, module.Set("exports", vm.NewObject()))
	Require(vm, module)
	require.NoError(t, vm.Set(GlobalName, module.Get("exports")))
	return vm
}

func TestScriptDataBuffer(t *testing.T) {
	vm := newRuntime(t)
	cases := []struct {
		name string
		src  string
		want interface{}
	}{
		{"create empty", `DataBuffer.create().length`, int64(0)},
		{"create sized", `DataBuffer.create(20).length`, int64(20)},
		{"from hex", `DataBuffer.fromHexString("00ffcc3e").byte().join(",")`, "0,255,204,62"},
		{"from byte array", `DataBuffer.fromByteArray([1, 2, 127, 255]).hexString`, "01027fff"},
		{"sub buffer", `DataBuffer.fromByteArray([1, 2, 127, 255]).subDataBuffer(1, 3).hexString`, "027fff"},
		{"empty sub buffer", `DataBuffer.fromByteArray([1, 2]).subDataBuffer(2, 0).length`, int64(0)},
		{"copy is distinct", `var d1 = DataBuffer.fromByteArray([1, 2]); var d2 = d1.copyAsNewDataBuffer(); (d1 == d2) + "," + d1.equal(d2)`, "false,true"},
		{"read byte", `DataBuffer.fromHexString("0102").byte(0)`, int64(1)},
		{"write byte", `var b = DataBuffer.fromHexString("0102"); b.byte(0, 127); b.hexString`, "7f02"},
		{"append", `var a = DataBuffer.fromHexString("0102"); a.append(DataBuffer.fromHexString("0768fc")); a.hexString`, "01020768fc"},
		{"insert", `var a = DataBuffer.fromHexString("01040506"); a.insert(DataBuffer.fromHexString("0203"), 1); a.hexString`, "010203040506"},
		{"delete", `var a = DataBuffer.fromHexString("01020304050607"); a.delete(2, 2); a.hexString`, "0102050607"},
		{"set length", `var a = DataBuffer.fromHexString("0102"); a.length = 4; a.hexString`, "01020000"},
		{"equal", `DataBuffer.fromHexString("0102").equal(DataBuffer.fromHexString("0103"))`, false},
		{"is data buffer", `DataBuffer.isDataBuffer(DataBuffer.create(1)) && !DataBuffer.isDataBuffer({})`, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, err := vm.RunString(c.src)
			require.NoError(t, err)
			assert.Equal(t, c.want, v.Export())
		})
	}
}

func TestScriptBoundsAreRangeErrors(t *testing.T) {
	vm := newRuntime(t)
	for _, src := range []string{
		`DataBuffer.create(2).byte(5)`,
		`DataBuffer.create(2).subDataBuffer(1, 5)`,
		`DataBuffer.create(2).delete(0, 3)`,
		`DataBuffer.create(2).byte(0, 300)`,
		`DataBuffer.fromByteArray([1, 256])`,
		`DataBuffer.create(2).subDataBuffer(1, Infinity)`,
		`DataBuffer.create(2).delete(1, Infinity)`,
		`DataBuffer.create(2).subDataBuffer(Infinity, 1)`,
		`DataBuffer.create(Infinity)`,
		`var b = DataBuffer.create(2); b.length = Infinity`,
	} {
		v, err := vm.RunString(`try { ` + src + `; "no error" } catch (e) { e instanceof RangeError }`)
		require.NoError(t, err)
		assert.Equal(t, true, v.Export(), src)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	vm := goja.New()
	b := FromBytes([]byte{0xca, 0xfe})
	v := b.ToValue(vm)
	got, ok := Unwrap(v)
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = Unwrap(vm.ToValue("cafe"))
	assert.False(t, ok)
}
