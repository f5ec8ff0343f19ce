package message_test

import (
	"testing"

	"github.com/AbyelT/omnipaxos/ballot"
	"github.com/AbyelT/omnipaxos/message"
	"github.com/AbyelT/omnipaxos/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareRoundTrip(t *testing.T) {
	want := message.Prepare{
		Ballot:        ballot.Ballot{N: 3, Priority: 1, Pid: 2},
		LdSender:      10,
		AcceptedRound: ballot.Ballot{N: 2, Pid: 2},
	}
	data, err := message.Encode(want)
	require.NoError(t, err)

	var got message.Prepare
	require.NoError(t, message.Decode(data, &got))
	assert.Equal(t, want, got)
}

func TestPromiseRoundTripWithSnapshot(t *testing.T) {
	want := message.Promise[string, string]{
		Ballot:     ballot.Ballot{N: 4, Pid: 1},
		DecidedIdx: 7,
		Suffix:     []string{"a", "b"},
		Snapshot: &storage.SnapshotType[string]{
			Kind:     storage.Complete,
			Snapshot: "snap",
		},
	}
	data, err := message.Encode(want)
	require.NoError(t, err)

	var got message.Promise[string, string]
	require.NoError(t, message.Decode(data, &got))
	assert.Equal(t, want, got)
}

func TestAcceptRoundTrip(t *testing.T) {
	want := message.Accept[string]{
		Ballot:  ballot.Ballot{N: 1, Pid: 3},
		Entries: []string{"x", "y", "z"},
		FromIdx: 5,
	}
	data, err := message.Encode(want)
	require.NoError(t, err)

	var got message.Accept[string]
	require.NoError(t, message.Decode(data, &got))
	assert.Equal(t, want, got)
}

func TestHeartbeatRoundTrip(t *testing.T) {
	req := message.HBRequest{Round: 42}
	data, err := message.Encode(req)
	require.NoError(t, err)
	var gotReq message.HBRequest
	require.NoError(t, message.Decode(data, &gotReq))
	assert.Equal(t, req, gotReq)

	reply := message.HBReply{Round: 42, Ballot: ballot.Ballot{N: 2, Pid: 9}, QuorumConnected: true}
	data, err = message.Encode(reply)
	require.NoError(t, err)
	var gotReply message.HBReply
	require.NoError(t, message.Decode(data, &gotReply))
	assert.Equal(t, reply, gotReply)
}

func TestFrameRoundTrip(t *testing.T) {
	want := message.HBRequest{Round: 5}
	framed, err := message.EncodeFrame(message.KindHBRequest, want)
	require.NoError(t, err)

	kind, body, err := message.DecodeFrame(framed)
	require.NoError(t, err)
	assert.Equal(t, message.KindHBRequest, kind)

	var got message.HBRequest
	require.NoError(t, message.Decode(body, &got))
	assert.Equal(t, want, got)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Accept", message.KindAccept.String())
	assert.Equal(t, "HBReply", message.KindHBReply.String())
}
