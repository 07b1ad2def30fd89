package status

import (
	"strings"
	"testing"
)

func TestView(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		want  []string
	}{
		{
			name:  "idle",
			model: Model{},
			want:  []string{"Monitor: no folder", "Server: stopped", "Client: disconnected"},
		},
		{
			name: "running",
			model: Model{
				Monitoring:  true,
				WatchedPath: "/data/photos",
				Serving:     true,
				ServerAddr:  "0.0.0.0:5000",
				Clients:     2,
				Connected:   true,
			},
			want: []string{"Monitor: photos", "Server: 0.0.0.0:5000 (2 clients)", "Client: connected"},
		},
		{
			name:  "error",
			model: Model{Err: "bind 0.0.0.0:5000: address already in use"},
			want:  []string{"address already in use"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.model.Width = 160
			v := tt.model.View()
			for _, want := range tt.want {
				if !strings.Contains(v, want) {
					t.Errorf("View() missing %q:\n%s", want, v)
				}
			}
		})
	}
}
