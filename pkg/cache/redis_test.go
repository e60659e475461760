package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	t.Run("address options", func(t *testing.T) {
		o := &Options{Address: "cache:6379", Password: "secret", DB: 3, DialTimeout: time.Second, ReadTimeout: 200 * time.Millisecond}
		ro, err := o.clientOptions()
		require.NoError(t, err)
		assert.Equal(t, "cache:6379", ro.Addr)
		assert.Equal(t, "secret", ro.Password)
		assert.Equal(t, 3, ro.DB)
		assert.Equal(t, 200*time.Millisecond, ro.WriteTimeout)
	})

	t.Run("url wins over address", func(t *testing.T) {
		o := &Options{URL: "redis://:pw@redis.internal:6380/4", Address: "ignored:1"}
		ro, err := o.clientOptions()
		require.NoError(t, err)
		assert.Equal(t, "redis.internal:6380", ro.Addr)
		assert.Equal(t, "pw", ro.Password)
		assert.Equal(t, 4, ro.DB)
	})

	t.Run("bad url", func(t *testing.T) {
		o := &Options{URL: "http://not-redis"}
		_, err := o.clientOptions()
		assert.ErrorContains(t, err, "parse redis url")
	})
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := New(ctx, WithAddress("127.0.0.1:1"), WithDialTimeout(100*time.Millisecond))
	assert.Nil(t, c)
	assert.ErrorContains(t, err, "redis ping 127.0.0.1:1")
}
