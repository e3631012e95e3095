package history

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseAmount(t *testing.T) {
	l := zap.NewNop()

	require.Equal(t, 110185.7, parseAmount(l, 1, "price", "110185.7"))
	require.Equal(t, 0.0, parseAmount(l, 1, "price", ""))
	require.Equal(t, 0.0, parseAmount(l, 1, "price", "not-a-number"))
}

func TestParseBybitAmount(t *testing.T) {
	l := zap.NewNop()

	require.Equal(t, 0.0012, parseBybitAmount(l, "order-1", "cum exec qty", "0.0012"))
	require.Equal(t, 0.0, parseBybitAmount(l, "order-1", "cum exec qty", ""))
	require.Equal(t, 0.0, parseBybitAmount(l, "order-1", "cum exec qty", "garbage"))
}
