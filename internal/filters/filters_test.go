package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want Chain
	}{
		{"defaults", Options{}, Chain{"scale=0:0"}},
		{"scale only", Options{Scale: "320:240"}, Chain{"scale=320:240"}},
		{"crop before scale", Options{Crop: "100:100:0:0", Scale: "320:240"}, Chain{"crop=100:100:0:0", "scale=320:240"}},
		{"crop keeps passthrough scale", Options{Crop: "10:10:5:5"}, Chain{"crop=10:10:5:5", "scale=0:0"}},
		{"extra is last and verbatim", Options{Scale: "320:-1", Extra: "fps=10,eq=gamma=1.2"}, Chain{"scale=320:-1", "fps=10,eq=gamma=1.2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(tt.opts))
		})
	}
}

func TestPaletteGraph(t *testing.T) {
	assert.Equal(t, "crop=100:100:0:0,scale=320:240,palettegen",
		Build(Options{Crop: "100:100:0:0", Scale: "320:240"}).PaletteGraph())
	assert.Equal(t, "scale=0:0,palettegen", Build(Options{}).PaletteGraph())
	assert.Equal(t, "scale=0:0,fps=12,palettegen", Build(Options{Extra: "fps=12"}).PaletteGraph())
}

func TestPaletteGraph_DoesNotMutateChain(t *testing.T) {
	chain := make(Chain, 0, 8)
	chain = append(chain, "scale=0:0")

	_ = chain.PaletteGraph()
	assert.Equal(t, "scale=0:0 [x]; [x][1:v] paletteuse", chain.EncodeGraph())
	assert.Len(t, chain, 1)
}

func TestEncodeGraph(t *testing.T) {
	assert.Equal(t, "crop=100:100:0:0,scale=320:240 [x]; [x][1:v] paletteuse",
		Build(Options{Crop: "100:100:0:0", Scale: "320:240"}).EncodeGraph())
	assert.Equal(t, "scale=0:0 [x]; [x][1:v] paletteuse", Build(Options{}).EncodeGraph())
}
