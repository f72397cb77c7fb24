package jobs

import "testing"

func TestRegistry_CancelLifecycle(t *testing.T) {
	r := NewRegistry()

	if r.Requested("job") {
		t.Error("fresh registry should have no cancellation flags")
	}

	r.RequestCancel("job")
	if !r.Requested("job") {
		t.Error("flag not set after RequestCancel")
	}
	if r.Requested("other") {
		t.Error("flag leaked to another job")
	}

	// Requested does not consume the flag.
	if !r.Requested("job") {
		t.Error("flag consumed by a read")
	}

	r.Clear("job")
	if r.Requested("job") {
		t.Error("flag survived Clear")
	}
}

func TestRegistry_ClearIsOneShot(t *testing.T) {
	r := NewRegistry()

	r.RequestCancel("job")
	r.Clear("job")

	// A later cancel requires a fresh request.
	if r.Requested("job") {
		t.Error("cleared flag should not re-trigger")
	}
	r.RequestCancel("job")
	if !r.Requested("job") {
		t.Error("new request after clear not registered")
	}
}

func TestToken(t *testing.T) {
	r := NewRegistry()
	tok := r.Token("job")

	if tok.Requested() {
		t.Error("token should start unrequested")
	}

	r.RequestCancel("job")
	if !tok.Requested() {
		t.Error("token does not observe the registry flag")
	}

	tok.Clear()
	if r.Requested("job") {
		t.Error("token Clear did not clear the registry flag")
	}
}

func TestToken_ZeroValue(t *testing.T) {
	var tok Token
	if tok.Requested() {
		t.Error("zero token should never report cancellation")
	}
	tok.Clear() // must not panic
}
