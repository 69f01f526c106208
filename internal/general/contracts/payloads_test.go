package contracts

import (
	"encoding/json"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	f, err := NewFrame(EventRiderReady, ReadinessChange{RideID: "ride-1", UserID: "u1"})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}

	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type":"riderReady","data":{"rideId":"ride-1","userId":"u1"}}` {
		t.Fatalf("wire = %s", raw)
	}

	back, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	var p ReadinessChange
	if err := Decode(back.Data, &p); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.UserID != "u1" {
		t.Errorf("payload = %+v", p)
	}
}

func TestNewFrameWithoutPayload(t *testing.T) {
	f, err := NewFrame(EventRideStartedByAdmin, nil)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(f)
	if string(raw) != `{"type":"rideStartedByAdmin"}` {
		t.Errorf("wire = %s", raw)
	}
	if _, err := NewFrame(" ", nil); err != ErrEmptyFrameType {
		t.Errorf("blank event: err = %v", err)
	}
	if _, err := DecodeFrame([]byte(`{"data":1}`)); err != ErrEmptyFrameType {
		t.Errorf("untyped frame: err = %v", err)
	}
}

func TestDecodeValidates(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		out     any
		wantErr bool
	}{
		{name: "valid location", data: `{"userId":"u2","lat":-32.1,"lon":115.7}`, out: &RiderLocationUpdate{}},
		{name: "latitude out of range", data: `{"userId":"u2","lat":-132.1,"lon":115.7}`, out: &RiderLocationUpdate{}, wantErr: true},
		{name: "missing user", data: `{"lat":1,"lon":1}`, out: &RiderLocationUpdate{}, wantErr: true},
		{name: "roster", data: `[{"user":{"_id":"u1","displayName":"Ann"},"ready":true}]`, out: &RosterSnapshot{}},
		{name: "roster entry without id", data: `[{"user":{"displayName":"Ann"},"ready":true}]`, out: &RosterSnapshot{}, wantErr: true},
		{name: "empty payload", data: ``, out: &PresenceNotice{}, wantErr: true},
		{name: "malformed json", data: `{`, out: &PresenceNotice{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decode(json.RawMessage(tt.data), tt.out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
