package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		lg, err := New(env)
		require.NoError(t, err, env)
		assert.NotNil(t, lg)
	}
}

func TestFromContext(t *testing.T) {
	base := zap.NewNop()
	scoped := base.With(zap.String("request_id", "abc"))

	assert.Same(t, base, FromContext(context.Background(), base))
	assert.Same(t, scoped, FromContext(WithContext(context.Background(), scoped), base))
	assert.NotNil(t, FromContext(context.Background(), nil))
}

func TestMasking(t *testing.T) {
	assert.Equal(t, "joh***@example.com", MaskEmail("john.doe@example.com"))
	assert.Equal(t, "", MaskEmail(""))
	assert.Equal(t, "192.168.*.*", MaskIP("192.168.1.100"))
	assert.Equal(t, "2001:0db8:85a3:0000:*:*:*:*", MaskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"))
	assert.Equal(t, "***", MaskIP("localhost"))
}
