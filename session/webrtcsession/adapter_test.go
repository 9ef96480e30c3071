package webrtcsession

import (
	"testing"

	"github.com/pion/webrtc/v3"

	"github.com/opd-ai/peerlink/session"
)

func TestMapConnectionState(t *testing.T) {
	cases := []struct {
		in      webrtc.PeerConnectionState
		want    session.Connectivity
		mapping bool
	}{
		{webrtc.PeerConnectionStateNew, 0, false},
		{webrtc.PeerConnectionStateConnecting, session.ConnectivityChecking, true},
		{webrtc.PeerConnectionStateConnected, session.ConnectivityConnected, true},
		{webrtc.PeerConnectionStateDisconnected, session.ConnectivityDisconnected, true},
		{webrtc.PeerConnectionStateFailed, session.ConnectivityFailed, true},
		{webrtc.PeerConnectionStateClosed, session.ConnectivityClosed, true},
	}

	for _, tc := range cases {
		got, ok := mapConnectionState(tc.in)
		if ok != tc.mapping {
			t.Errorf("%s: mapped = %v, want %v", tc.in, ok, tc.mapping)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.in, got, tc.want)
		}
	}
}

// TestOfferAnswerExchange verifies two adapters can complete a local
// description exchange without any network connectivity.
func TestOfferAnswerExchange(t *testing.T) {
	initiator, err := New(nil)
	if err != nil {
		t.Fatalf("New initiator: %v", err)
	}
	defer initiator.Close()

	responder, err := New(nil)
	if err != nil {
		t.Fatalf("New responder: %v", err)
	}
	defer responder.Close()

	initiator.Bind(session.Events{})
	responder.Bind(session.Events{})

	if err := initiator.OpenChannel(); err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}

	offer, err := initiator.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}

	if err := responder.SetRemoteDescription(offer); err != nil {
		t.Fatalf("SetRemoteDescription(offer): %v", err)
	}

	answer, err := responder.CreateAnswer()
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}

	if err := initiator.SetRemoteDescription(answer); err != nil {
		t.Fatalf("SetRemoteDescription(answer): %v", err)
	}
}

func TestSendMessageBeforeChannelOpen(t *testing.T) {
	a, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	a.Bind(session.Events{})
	if err := a.SendMessage([]byte("hi")); err == nil {
		t.Error("SendMessage should fail without an open channel")
	}
}
