package tts

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// CommandRunner runs name with args, feeding stdin, and returns stdout.
type CommandRunner func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

// ExecRunner is the CommandRunner backed by os/exec.
func ExecRunner(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w (stderr: %s)", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// EspeakConfig holds configuration for the local espeak-ng backend.
type EspeakConfig struct {
	BinPath      string // default: "espeak-ng"
	DefaultVoice string // default: "en"
}

// EspeakAdapter synthesizes speech by running espeak-ng as a subprocess.
// Output is always WAV.
type EspeakAdapter struct {
	cfg    EspeakConfig
	run    CommandRunner
	voices *voiceCache
}

// NewEspeakAdapter creates an EspeakAdapter. A nil runner uses ExecRunner.
func NewEspeakAdapter(cfg EspeakConfig, run CommandRunner) *EspeakAdapter {
	if cfg.BinPath == "" {
		cfg.BinPath = "espeak-ng"
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "en"
	}
	if run == nil {
		run = ExecRunner
	}
	a := &EspeakAdapter{cfg: cfg, run: run}
	// The installed voice set cannot change while the process runs.
	a.voices = newVoiceCache(0, a.fetchVoices)
	return a
}

func (a *EspeakAdapter) Mode() Mode { return ModeEspeak }

// Capabilities uses words per minute for the rate.
func (a *EspeakAdapter) Capabilities() Capabilities {
	return Capabilities{
		SupportsRate:  true,
		MinRate:       80,
		MaxRate:       450,
		DefaultRate:   175,
		Formats:       []Format{FormatWAV},
		DefaultFormat: FormatWAV,
		DefaultVoice:  a.cfg.DefaultVoice,
	}
}

func (a *EspeakAdapter) ListVoices(ctx context.Context) (*VoiceList, error) {
	return a.voices.get(ctx)
}

func (a *EspeakAdapter) fetchVoices(ctx context.Context) (*VoiceList, error) {
	out, err := a.run(ctx, nil, a.cfg.BinPath, "--voices")
	if err != nil {
		return nil, a.processError(err, "listing espeak voices")
	}
	voices, err := parseEspeakVoices(out)
	if err != nil {
		return nil, err
	}
	return &VoiceList{Voices: voices, Raw: voices}, nil
}

// Synthesize pipes text into espeak-ng and returns the WAV from stdout.
func (a *EspeakAdapter) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	args := []string{
		"--stdout",
		"--stdin",
		"-v", req.Voice,
		"-s", strconv.Itoa(int(req.SpeakingRate)),
	}
	audio, err := a.run(ctx, strings.NewReader(req.Text), a.cfg.BinPath, args...)
	if err != nil {
		return nil, a.processError(err, "espeak synthesis")
	}
	if len(audio) == 0 {
		return nil, Classify(ErrMalformedResponse, nil, "espeak produced no audio")
	}
	return &SynthesisResult{Audio: audio, ContentType: FormatWAV.ContentType()}, nil
}

func (a *EspeakAdapter) processError(err error, what string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return Classify(ErrUnavailable, err, "%s: espeak binary %q not found", what, a.cfg.BinPath)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Classify(ErrTimeout, err, "%s", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// espeakAlias matches an "(en 2)" entry of the Other Languages column.
var espeakAlias = regexp.MustCompile(`\(([^\s()]+)\s+\d+\)`)

// parseEspeakVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 2  en-gb           --/M      English_(Great_Britain) gmw/en   (en 2)
//
// Every Language entry is a voice. Other Languages entries are aliases that
// `-v` also accepts, so bare "en" is listed even though no row names it;
// they are appended after the primary voices.
func parseEspeakVoices(out []byte) ([]Voice, error) {
	var voices, aliases []Voice
	seen := make(map[string]bool)

	sc := bufio.NewScanner(bytes.NewReader(out))
	header := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if header {
			header = false
			if strings.HasPrefix(line, "Pty") {
				continue
			}
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		name := strings.ReplaceAll(fields[3], "_", " ")
		if id := fields[1]; !seen[id] {
			seen[id] = true
			voices = append(voices, Voice{ID: id, Name: name})
		}
		if len(fields) > 5 {
			for _, m := range espeakAlias.FindAllStringSubmatch(strings.Join(fields[5:], " "), -1) {
				aliases = append(aliases, Voice{ID: m[1], Name: name})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read espeak voices: %w", err)
	}

	for _, v := range aliases {
		if !seen[v.ID] {
			seen[v.ID] = true
			voices = append(voices, v)
		}
	}
	if len(voices) == 0 {
		return nil, Classify(ErrMalformedResponse, nil, "espeak reported no voices")
	}
	return voices, nil
}
