package ad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePolicy_Defaults(t *testing.T) {
	tests := []struct {
		format      Format
		retries     int
		backoff     time.Duration
		reload      int
		reusable    bool
		fullScreen  bool
		presentable bool
		rewarding   bool
	}{
		{FormatSplash, 0, 0, 0, false, true, true, false},
		{FormatAppOpen, 0, 0, 1, true, true, true, false},
		{FormatRewarded, 1, 5 * time.Second, 2, true, true, true, true},
		{FormatRewardedInterstitial, 1, 5 * time.Second, 2, true, true, true, true},
		{FormatNative, 0, 0, 0, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			unit, err := NewUnitConfig(tt.format, "id", "unit", true, UnitOptions{})
			require.NoError(t, err)

			policy, err := ResolvePolicy(tt.format, unit)
			require.NoError(t, err)

			assert.Equal(t, tt.format, policy.Format)
			assert.Equal(t, tt.retries, policy.MaxLoadRetries)
			assert.Equal(t, tt.backoff, policy.RetryBackoff)
			assert.Equal(t, tt.reload, policy.PreShowReloadAfter)
			assert.Equal(t, tt.reusable, policy.Reusable)
			assert.Equal(t, tt.fullScreen, policy.FullScreen)
			assert.Equal(t, tt.presentable, policy.Presentable)
			assert.Equal(t, tt.rewarding, policy.Rewarding)
			assert.Zero(t, policy.LoadTimeout)
			assert.Zero(t, policy.MinShowInterval)
		})
	}
}

func TestResolvePolicy_UnitOverrides(t *testing.T) {
	unit, err := NewUnitConfig(FormatAppOpen, "id", "open", true, UnitOptions{
		Timeout:         8 * time.Second,
		MinShowInterval: 30 * time.Second,
	})
	require.NoError(t, err)

	policy, err := ResolvePolicy(FormatAppOpen, unit)
	require.NoError(t, err)
	assert.Equal(t, 8*time.Second, policy.LoadTimeout)
	assert.Equal(t, 30*time.Second, policy.MinShowInterval)
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"too many retries", Policy{MaxLoadRetries: 3, RetryBackoff: time.Second}},
		{"negative retries", Policy{MaxLoadRetries: -1}},
		{"retries without backoff", Policy{MaxLoadRetries: 1}},
		{"negative timeout", Policy{LoadTimeout: -time.Second}},
		{"full screen not presentable", Policy{FullScreen: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.policy.Validate(), ErrInvalidConfiguration)
		})
	}

	assert.NoError(t, Policy{MaxLoadRetries: 2, RetryBackoff: time.Second}.Validate())
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		parsed, err := ParseFormat(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}

	_, err := ParseFormat("banner")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestNewUnitConfig(t *testing.T) {
	t.Run("placement defaults to name", func(t *testing.T) {
		unit, err := NewUnitConfig(FormatRewarded, "ca-app-pub-1/2", " reward ", true, UnitOptions{})
		require.NoError(t, err)
		assert.Equal(t, "reward", unit.Name())
		assert.Equal(t, "reward", unit.Placement())
		assert.Equal(t, Key{Format: FormatRewarded, Name: "reward"}, unit.Key())
		assert.Equal(t, "rewarded/reward", unit.Key().String())
	})

	t.Run("disabled unit needs no id", func(t *testing.T) {
		unit, err := NewUnitConfig(FormatSplash, "", "launch", false, UnitOptions{})
		require.NoError(t, err)
		assert.False(t, unit.Enabled())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := NewUnitConfig(FormatSplash, "", "launch", true, UnitOptions{})
		assert.ErrorIs(t, err, ErrInvalidConfiguration)

		_, err = NewUnitConfig(FormatSplash, "id", "  ", true, UnitOptions{})
		assert.ErrorIs(t, err, ErrInvalidConfiguration)

		_, err = NewUnitConfig(Format("banner"), "id", "b", true, UnitOptions{})
		assert.ErrorIs(t, err, ErrInvalidConfiguration)

		_, err = NewUnitConfig(FormatSplash, "id", "launch", true, UnitOptions{Timeout: -time.Second})
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})
}

func TestErrorCode(t *testing.T) {
	src := &SourceError{Code: 2, Message: "network"}
	wrapped := Wrap(ErrLoadFailed, src)

	assert.ErrorIs(t, wrapped, ErrLoadFailed)
	assert.Equal(t, 2, ErrorCode(wrapped))
	assert.Equal(t, -1, ErrorCode(ErrLoadTimeout))
	assert.Equal(t, ErrNotReady, Wrap(ErrNotReady, nil))
}

type handle struct{ source string }

func (h handle) ID() string           { return "id" }
func (h handle) AdSourceName() string { return h.source }

func TestIsTestAd(t *testing.T) {
	isTest, known := IsTestAd(nil)
	assert.False(t, isTest)
	assert.False(t, known)

	_, known = IsTestAd(handle{})
	assert.False(t, known)

	isTest, known = IsTestAd(handle{source: "Test Ad Network"})
	assert.True(t, isTest)
	assert.True(t, known)

	isTest, known = IsTestAd(handle{source: "AdMob Network"})
	assert.False(t, isTest)
	assert.True(t, known)
}
