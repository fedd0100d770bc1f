package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		sampler string
		arg     string
		want    trace.Sampler
	}{
		{"always_on", "", trace.AlwaysSample()},
		{"always_off", "", trace.NeverSample()},
		{"traceidratio", "0.25", trace.TraceIDRatioBased(0.25)},
		{"parentbased_always_on", "", trace.ParentBased(trace.AlwaysSample())},
		{"", "", trace.AlwaysSample()},
		{"bogus", "", trace.AlwaysSample()},
	}

	for _, tt := range tests {
		got := createSampler(&Config{Sampler: tt.sampler, SamplerArg: tt.arg})
		assert.Equal(t, tt.want.Description(), got.Description(), "sampler %q", tt.sampler)
	}
}

func TestParseRatio(t *testing.T) {
	assert.Equal(t, 1.0, parseRatio(""))
	assert.Equal(t, 1.0, parseRatio("junk"))
	assert.Equal(t, 0.5, parseRatio("0.5"))
	assert.Equal(t, 0.0, parseRatio("-2"))
	assert.Equal(t, 1.0, parseRatio("7"))
}
