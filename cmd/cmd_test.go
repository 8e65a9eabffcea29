package cmd

import (
	"bytes"
	"testing"

	"github.com/golang-pay-settlement/config"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, Version+"\n", out.String())
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "sweep", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestNewGatewayRegistry_Disabled(t *testing.T) {
	registry, err := newGatewayRegistry(&config.Config{})
	require.NoError(t, err)
	assert.Empty(t, registry.Methods())
}

func TestNewGatewayRegistry_InvalidWechatKey(t *testing.T) {
	_, err := newGatewayRegistry(&config.Config{Wechat: config.WechatConfig{
		Enabled:    true,
		MerchantID: "1900000001",
		APIv3Key:   "short",
	}})
	assert.Error(t, err)
}

func TestNewDownstreamRegistry(t *testing.T) {
	registry := newDownstreamRegistry(config.DownstreamConfig{
		Services: map[string]config.DownstreamServiceConfig{
			models.SourceOrderTypeSubscription: {BaseURL: "http://subscription.local"},
			models.SourceOrderTypeCommission:   {BaseURL: "http://commission.local"},
		},
	})
	assert.Equal(t, []string{models.SourceOrderTypeCommission, models.SourceOrderTypeSubscription}, registry.Types())
}
