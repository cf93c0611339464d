package external_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/extmetrics/internal/external"
)

func TestParseReport(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		want    []external.Metric
		wantErr bool
	}{
		{
			name:   "psnr and mse",
			stdout: "external:api=1\npsnr=45.2\nmse=0.001\n",
			want:   []external.Metric{{Name: "psnr", Value: 45.2}, {Name: "mse", Value: 0.001}},
		},
		{name: "version only", stdout: "external:api=1\n"},
		{name: "version without newline", stdout: "external:api=1"},
		{
			name:   "crlf and padded value",
			stdout: "external:api=1\r\nratio= 3.5 \r\n",
			want:   []external.Metric{{Name: "ratio", Value: 3.5}},
		},
		{
			name:   "exponent notation",
			stdout: "external:api=1\na=1e3\n",
			want:   []external.Metric{{Name: "a", Value: 1000}},
		},
		{name: "second equals belongs to the value", stdout: "external:api=1\na=b=1\n", wantErr: true},
		{name: "empty output", stdout: "", wantErr: true},
		{name: "not a version line", stdout: "not-a-version-line\n", wantErr: true},
		{name: "missing version number", stdout: "external:api=\n", wantErr: true},
		{name: "non numeric version", stdout: "external:api=one\n", wantErr: true},
		{name: "zero version", stdout: "external:api=0\n", wantErr: true},
		{name: "negative version", stdout: "external:api=-1\n", wantErr: true},
		{name: "unknown version", stdout: "external:api=2\nx=1\n", wantErr: true},
		{name: "missing separator", stdout: "external:api=1\npsnr 45\n", wantErr: true},
		{name: "empty name", stdout: "external:api=1\n=4\n", wantErr: true},
		{name: "bad number", stdout: "external:api=1\npsnr=4x\n", wantErr: true},
		{name: "blank line", stdout: "external:api=1\n\npsnr=1\n", wantErr: true},
		{name: "bad line after good ones", stdout: "external:api=1\npsnr=1\nmse=?\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := external.ParseReport([]byte(tt.stdout))
			if tt.wantErr {
				require.ErrorIs(t, err, external.ErrFormat)
				assert.Nil(t, rep)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, rep.Version)
			assert.Equal(t, tt.want, rep.Metrics)
		})
	}
}

func TestParseReportLongLine(t *testing.T) {
	name := make([]byte, 200_000)
	for i := range name {
		name[i] = 'm'
	}
	rep, err := external.ParseReport([]byte("external:api=1\n" + string(name) + "=1\n"))
	require.NoError(t, err)
	require.Len(t, rep.Metrics, 1)
	assert.Len(t, rep.Metrics[0].Name, len(name))
}
