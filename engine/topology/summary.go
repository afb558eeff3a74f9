package topology

// Summary is a serializable digest of an extracted system, published after
// extraction and printed by the CLI.
type Summary struct {
	System      string           `json:"system"`
	Ref         string           `json:"ref"`
	Ecus        []string         `json:"ecus"`
	Signals     int              `json:"signals"`
	Frames      int              `json:"frames"`
	Channels    []ChannelSummary `json:"channels"`
	Diagnostics int              `json:"diagnostics"`
}

// ChannelSummary describes one channel.
type ChannelSummary struct {
	Name     string         `json:"name"`
	Cluster  string         `json:"cluster"`
	Baudrate uint64         `json:"baudrate,omitempty"`
	Frames   []FrameSummary `json:"frames"`
}

// FrameSummary describes one frame.
type FrameSummary struct {
	Name     string   `json:"name"`
	ID       uint32   `json:"id"`
	Extended bool     `json:"extended,omitempty"`
	Length   int      `json:"length"`
	Sender   string   `json:"sender"`
	Receiver string   `json:"receiver"`
	Signals  []string `json:"signals,omitempty"`
}

// Summarize digests s. diagnostics is the number of warnings recorded while
// extracting it.
func Summarize(s *System, diagnostics int) Summary {
	sum := Summary{
		System:      s.name,
		Ref:         s.ref,
		Signals:     len(s.signals),
		Diagnostics: diagnostics,
	}
	for _, e := range s.ecus {
		sum.Ecus = append(sum.Ecus, e.Name)
	}
	for _, ch := range s.channels {
		cs := ChannelSummary{Name: ch.Name, Cluster: ch.Cluster, Baudrate: ch.Baudrate}
		for _, f := range ch.Frames {
			fs := FrameSummary{
				Name:     f.Name,
				ID:       f.ID,
				Extended: f.Extended,
				Length:   f.Length,
				Sender:   f.Sender(),
				Receiver: f.Receiver(),
			}
			for _, p := range f.Signals {
				fs.Signals = append(fs.Signals, p.Signal.Name)
			}
			cs.Frames = append(cs.Frames, fs)
		}
		sum.Frames += len(ch.Frames)
		sum.Channels = append(sum.Channels, cs)
	}
	return sum
}
