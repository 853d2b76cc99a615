package feedsweep

import (
	"io"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/sink"
)

// Sink is the output interface for decisions and stats.
type Sink = sink.Sink

// NewStdoutSink creates a JSON-lines sink on w (os.Stdout when nil).
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewFileSink appends JSON lines to the file at path.
func NewFileSink(path string) (Sink, error) {
	return sink.NewFile(path)
}

// DecisionFunc is called for each decision.
type DecisionFunc = sink.DecisionFunc

// StatsFunc is called for each stats report.
type StatsFunc = sink.StatsFunc

// NewCallbackSink creates an in-process sink. Either function may be nil.
func NewCallbackSink(onDecision DecisionFunc, onStats StatsFunc) Sink {
	return sink.NewCallback(onDecision, onStats)
}

// SinksFromConfig builds the sinks listed in cfg.
func SinksFromConfig(cfg *Config) ([]Sink, error) {
	var out []Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "file":
			f, err := sink.NewFile(sc.Path)
			if err != nil {
				for _, s := range out {
					_ = s.Close()
				}
				return nil, err
			}
			out = append(out, f)
		default:
			out = append(out, sink.NewStdout(nil))
		}
	}
	return out, nil
}
