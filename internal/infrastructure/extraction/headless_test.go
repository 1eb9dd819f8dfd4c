package extraction

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadlessConfig_Validate(t *testing.T) {
	cfg := HeadlessConfig{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultHeadlessWait, cfg.Timeout)
	assert.Equal(t, defaultMinJitter, cfg.MinJitter)
	assert.Equal(t, defaultMaxJitter, cfg.MaxJitter)
	assert.Equal(t, defaultLanguage, cfg.AcceptLanguage)
	assert.Equal(t, DefaultUserAgents(), cfg.UserAgents)
}

func TestHeadlessExtractor_Jitter(t *testing.T) {
	e, err := NewHeadlessExtractor(HeadlessConfig{
		MinJitter: 10 * time.Millisecond,
		MaxJitter: 20 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, StageHeadlessRender, e.Name())

	for i := 0; i < 50; i++ {
		d := e.jitter()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 20*time.Millisecond)
	}
}

func TestHeadlessExtractor_AllocatorOptions(t *testing.T) {
	e, err := NewHeadlessExtractor(HeadlessConfig{}, nil)
	require.NoError(t, err)
	base := len(e.allocatorOptions("ua"))

	sandboxed, err := NewHeadlessExtractor(HeadlessConfig{NoSandbox: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, base+1, len(sandboxed.allocatorOptions("ua")))
}

func TestHeadlessExtractor_RenderTasks(t *testing.T) {
	local, err := NewHeadlessExtractor(HeadlessConfig{}, nil)
	require.NoError(t, err)
	remote, err := NewHeadlessExtractor(HeadlessConfig{RemoteURL: "ws://127.0.0.1:9222"}, nil)
	require.NoError(t, err)

	var html string
	localTasks := local.renderTasks("https://shop.example.com/p/1", "agent/1.0", &html)
	remoteTasks := remote.renderTasks("https://shop.example.com/p/1", "agent/1.0", &html)
	require.Len(t, remoteTasks, len(localTasks)+1)

	var override *emulation.SetUserAgentOverrideParams
	for _, task := range remoteTasks {
		if p, ok := task.(*emulation.SetUserAgentOverrideParams); ok {
			override = p
		}
	}
	require.NotNil(t, override, "remote browsers get a per-tab user agent")
	assert.Equal(t, "agent/1.0", override.UserAgent)
	assert.Equal(t, defaultLanguage, override.AcceptLanguage)

	for _, task := range localTasks {
		_, ok := task.(*emulation.SetUserAgentOverrideParams)
		assert.False(t, ok, "local browsers take the user agent as a launch flag")
	}
}

func TestPickUserAgent(t *testing.T) {
	pool := []string{"a", "b", "c"}
	for i := 0; i < 20; i++ {
		assert.Contains(t, pool, pickUserAgent(pool))
	}
	assert.Equal(t, defaultUserAgents[0], pickUserAgent(nil))
}
