package mix

import (
	"context"
	"testing"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type source struct{ buf []float32 }

func (s *source) Name() string                { return "src" }
func (s *source) Latency() uint32             { return 0 }
func (s *source) Process(processing.Request) {}
func (s *source) Buffer() []float32           { return s.buf }

func TestMixer_SumsAndScales(t *testing.T) {
	m := New("m", [][]float32{{1, 1, 1}, {2, 3, 4}}, 3, 0, 0.5)

	m.Process(processing.Request{Time: processing.TimeInfo{Frames: 3}})

	assert.Equal(t, []float32{1.5, 2, 2.5}, m.Buffer())
}

func TestRegister(t *testing.T) {
	r := registry.NewWithModules(&Module{})
	ins := []processing.Processable{&source{buf: []float32{1}}, &source{buf: []float32{2}}, &source{buf: []float32{3}}}

	proc, err := r.Build(context.Background(), "mix", registry.Args{Name: "m", BlockLength: 1, Inputs: ins}, nil)
	require.NoError(t, err)
	proc.Process(processing.Request{Time: processing.TimeInfo{Frames: 1}})

	assert.Equal(t, []float32{6}, proc.(*Mixer).Buffer())

	_, err = r.Build(context.Background(), "mix", registry.Args{Name: "m"}, nil)
	assert.ErrorContains(t, err, "want at least 1")
}
