package split

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/nn"
	"mlp_lib/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func init() {
	utils.Verbose = false
}

// pipePair wires a client and a server protocol over two in-memory pipes.
func pipePair() (client, server *Protocol, closeAll func()) {
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()
	return NewProtocol(s2cR, c2sW), NewProtocol(c2sR, s2cW), func() {
		c2sW.Close()
		s2cW.Close()
	}
}

func randomInputs(seed uint64, n, width int) [][]float64 {
	rnd := rand.New(rand.NewSource(seed))
	in := make([][]float64, n)
	for i := range in {
		in[i] = make([]float64, width)
		for k := range in[i] {
			in[i][k] = rnd.Float64()*2 - 1
		}
	}
	return in
}

func TestEncryptedInferenceMatchesPlaintext(t *testing.T) {
	net, err := nn.NewWithSource([]int{12, 5, 3}, rand.NewSource(21))
	require.NoError(t, err)
	he, err := ckkswrapper.NewHeContext()
	require.NoError(t, err)

	cp, sp, closeAll := pipePair()
	defer closeAll()

	server, err := NewServer(net, sp)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- server.Serve() }()

	client, err := NewClient(he, net, cp)
	require.NoError(t, err)
	require.NoError(t, client.Setup())

	for _, x := range randomInputs(3, 4, 12) {
		want, err := net.FeedForward(x)
		require.NoError(t, err)
		got, err := client.FeedForward(x)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, got, 1e-3)

		wantIdx, _ := net.Predict(x)
		gotIdx, err := client.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, wantIdx, gotIdx)
	}

	require.NoError(t, client.Close())
	require.NoError(t, <-done)
}

func TestEncryptedSingleTransition(t *testing.T) {
	net, err := nn.FromParameters([]int{3, 2},
		[][][]float64{{{1, -1, 0.5}, {0.25, 0.25, -2}}},
		[][]float64{{0.1, -0.3}})
	require.NoError(t, err)
	he, err := ckkswrapper.NewHeContext()
	require.NoError(t, err)

	cp, sp, closeAll := pipePair()
	defer closeAll()

	server, err := NewServer(net, sp)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- server.Serve() }()

	client, err := NewClient(he, net, cp)
	require.NoError(t, err)
	require.NoError(t, client.Setup())

	client.Stats = &utils.TimingStats{}

	x := []float64{0.5, -0.25, 1}
	want, err := net.FeedForward(x)
	require.NoError(t, err)
	got, err := client.FeedForward(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-3)
	assert.Positive(t, client.Stats.EncryptionTime)
	assert.Positive(t, client.Stats.DecryptionTime)

	require.NoError(t, client.Close())
	require.NoError(t, <-done)
}

func TestServerEvaluateDirect(t *testing.T) {
	net, err := nn.FromParameters([]int{4, 3},
		[][][]float64{{{1, 0, 0, 0}, {0, 2, 0, 0}, {0.5, 0.5, 0.5, 0.5}}},
		[][]float64{{0, 1, -1}})
	require.NoError(t, err)
	he, err := ckkswrapper.NewHeContext()
	require.NoError(t, err)

	server, err := NewServer(net, nil)
	require.NoError(t, err)
	_, err = server.Evaluate(nil)
	assert.Error(t, err, "no keys yet")

	kit, err := he.GenServerKit(Rotations(4, 3))
	require.NoError(t, err)
	server.SetKit(kit)

	ct, err := he.EncryptVector([]float64{0.2, 0.4, 0.6, 0.8})
	require.NoError(t, err)
	out, err := server.Evaluate(ct)
	require.NoError(t, err)

	z, err := he.DecryptVector(out, 4)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, 1.8, 0, 0}, z, 1e-4)
}

func TestClientRejectsWrongInput(t *testing.T) {
	net, err := nn.NewWithSource([]int{4, 2}, rand.NewSource(1))
	require.NoError(t, err)
	he, err := ckkswrapper.NewHeContext()
	require.NoError(t, err)

	client, err := NewClient(he, net, NewProtocol(nil, io.Discard))
	require.NoError(t, err)
	_, err = client.FeedForward([]float64{1, 2})
	assert.True(t, errors.Is(err, nn.ErrShape))
}

func TestServerRejectsMismatchedSetup(t *testing.T) {
	serverNet, err := nn.NewWithSource([]int{4, 2}, rand.NewSource(1))
	require.NoError(t, err)
	clientNet, err := nn.NewWithSource([]int{5, 2}, rand.NewSource(1))
	require.NoError(t, err)
	he, err := ckkswrapper.NewHeContext()
	require.NoError(t, err)

	cp, sp, closeAll := pipePair()
	defer closeAll()

	server, err := NewServer(serverNet, sp)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- server.Serve() }()

	client, err := NewClient(he, clientNet, cp)
	require.NoError(t, err)
	require.NoError(t, client.Setup())

	_, err = cp.Receive()
	assert.True(t, errors.Is(err, ErrRemote), "%v", err)
	assert.True(t, errors.Is(<-done, nn.ErrShape))
}

var errBrokenPipe = errors.New("broken pipe")

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errBrokenPipe }

func TestServerSetupFailureReportsSendError(t *testing.T) {
	net, err := nn.NewWithSource([]int{4, 2}, rand.NewSource(1))
	require.NoError(t, err)

	var in bytes.Buffer
	require.NoError(t, NewProtocol(nil, &in).SendDone())

	server, err := NewServer(net, NewProtocol(&in, brokenWriter{}))
	require.NoError(t, err)
	err = server.Serve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected")
	assert.True(t, errors.Is(err, errBrokenPipe), "%v", err)
}
