package accessory

import (
	"errors"
	"sync"
	"testing"
)

func TestAccessory_SetStatusDoesNotNotify(t *testing.T) {
	a := New(KindOutlet, Info{Name: "Plug"})

	called := false
	a.OnChange(func(Status) { called = true })

	a.SetStatus(StatusOn)

	if called {
		t.Error("SetStatus notified observers")
	}
	if got := a.Status(); got != StatusOn {
		t.Errorf("Status() = %v, want on", got)
	}
}

func TestAccessory_RequestNotifiesObservers(t *testing.T) {
	a := New(KindLight, Info{})

	var mu sync.Mutex
	var got []Status
	unsubscribe := a.OnChange(func(s Status) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	a.Request(StatusOn)
	a.Request(StatusOn)
	a.Request(StatusUnknown)
	unsubscribe()
	unsubscribe()
	a.Request(StatusOff)

	want := []Status{StatusOn, StatusOn, StatusUnknown}
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if a.Status() != StatusOff {
		t.Errorf("Status() = %v, want off", a.Status())
	}
}

func TestNew_DefaultsToOutletUnknown(t *testing.T) {
	a := New("", Info{})
	if a.Kind() != KindOutlet {
		t.Errorf("Kind() = %q, want outlet", a.Kind())
	}
	if a.Status() != StatusUnknown {
		t.Errorf("Status() = %v, want unknown", a.Status())
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"on", StatusOn, false},
		{"ON", StatusOn, false},
		{"true", StatusOn, false},
		{"off", StatusOff, false},
		{" Off ", StatusOff, false},
		{"0", StatusOff, false},
		{"unknown", StatusUnknown, false},
		{"", StatusUnknown, false},
		{"toggle", StatusUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidStatus) {
				t.Errorf("error %v does not wrap ErrInvalidStatus", err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in        string
		want      Kind
		component string
		wantErr   bool
	}{
		{"", KindOutlet, "switch", false},
		{"outlet", KindOutlet, "switch", false},
		{"Light", KindLight, "light", false},
		{"switch", KindSwitch, "switch", false},
		{"fan", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKind) {
					t.Errorf("error %v does not wrap ErrInvalidKind", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if got.Component() != tt.component {
				t.Errorf("Component() = %q, want %q", got.Component(), tt.component)
			}
		})
	}
}

func TestStatus_Text(t *testing.T) {
	var s Status
	if err := s.UnmarshalText([]byte("ON")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	b, _ := s.MarshalText()
	if string(b) != "on" {
		t.Errorf("MarshalText() = %q, want on", b)
	}
	if StatusUnknown.Known() || !StatusOff.Known() {
		t.Error("Known() mismatch")
	}
}
