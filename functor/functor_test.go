package functor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/record"
	"github.com/Pudrick/Souffle-mod/symbol"
)

func TestInvokeStatelessSigned(t *testing.T) {
	sym := symbol.New()
	rec := record.New()
	b := New(sym, rec)
	b.RegisterStateless(Descriptor{
		Name:       "add1",
		ArgTypes:   []TypeTag{TSigned},
		ReturnType: TSigned,
	}, func(args []any) any {
		return args[0].(int64) + 1
	})

	result, err := b.InvokeStateless("add1", []domain.Word{domain.FromSigned(41)})
	require.NoError(t, err)
	require.Equal(t, int64(42), result.Signed())
}

func TestInvokeStatelessSymbolRoundTrip(t *testing.T) {
	sym := symbol.New()
	rec := record.New()
	b := New(sym, rec)
	b.RegisterStateless(Descriptor{
		Name:       "shout",
		ArgTypes:   []TypeTag{TSymbol},
		ReturnType: TSymbol,
	}, func(args []any) any {
		return args[0].(string) + "!"
	})

	id := sym.Encode("hi")
	result, err := b.InvokeStateless("shout", []domain.Word{id})
	require.NoError(t, err)
	require.Equal(t, "hi!", sym.Decode(result))
}

func TestInvokeStatefulReceivesTables(t *testing.T) {
	sym := symbol.New()
	rec := record.New()
	b := New(sym, rec)
	b.RegisterStateful(Descriptor{Name: "count"}, func(s *symbol.Table, r *record.Table, args []domain.Word) domain.Word {
		require.Same(t, sym, s)
		return domain.FromSigned(int64(len(args)))
	})

	result, err := b.InvokeStateful("count", []domain.Word{domain.FromSigned(1), domain.FromSigned(2)})
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Signed())
}

func TestInvokeUnresolvedFails(t *testing.T) {
	b := New(symbol.New(), record.New())
	_, err := b.InvokeStateless("missing", nil)
	require.Error(t, err)
}

func TestGenericDisabledFailsAboveThreshold(t *testing.T) {
	sym := symbol.New()
	rec := record.New()
	b := New(sym, rec)
	b.GenericEnabled = false
	types := make([]TypeTag, 3)
	b.RegisterStateless(Descriptor{Name: "many", ArgTypes: types, ReturnType: TSigned}, func(args []any) any {
		return int64(0)
	})
	args := make([]domain.Word, 3)
	_, err := b.InvokeStateless("many", args)
	require.Error(t, err)
}
