package options

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestParsePayloadHex(t *testing.T) {
	data, err := ParsePayloadHex(" 14 09\t00 \nff ")
	require.NoError(t, err)
	require.Equal(t, []byte{0x14, 0x09, 0x00, 0xFF}, data)

	data, err = ParsePayloadHex("0x0102")
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, data)

	data, err = ParsePayloadHex("")
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestParsePayloadHexErrors(t *testing.T) {
	_, err := ParsePayloadHex("ABC")
	require.Error(t, err)
	_, err = ParsePayloadHex("ZZ")
	require.Error(t, err)
}

func TestLoggerFromContext(t *testing.T) {
	require.Equal(t, logrus.StandardLogger(), Logger(context.Background()))

	log, hook := test.NewNullLogger()
	ctx := WithLogger(context.Background(), log)
	Logger(ctx).Info("hello")
	require.Len(t, hook.Entries, 1)

	require.Equal(t, ctx, WithLogger(ctx, nil))
}
