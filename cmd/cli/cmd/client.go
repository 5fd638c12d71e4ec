package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/genai-cost-planner/genai-cost-planner/internal/presets"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

var httpClient = &http.Client{Timeout: 2 * time.Minute}

// callAPI sends body as JSON (when non-nil) and decodes a 2xx response into
// out (when non-nil). Non-2xx responses become errors carrying the server's
// message.
func callAPI(method, path string, body, out any) error {
	resp, err := send(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// callAPIRaw returns the undecoded body of a 2xx response
func callAPIRaw(method, path string, body any) ([]byte, error) {
	resp, err := send(method, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func send(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return resp, nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// paramOptions are the flags shared by every command that takes a
// configuration. Negative override values mean "not set".
type paramOptions struct {
	preset string
	file   string

	context   float64
	prompt    float64
	response  float64
	qps       float64
	hitRate   float64
	savings   float64
	batch     int
	servers   int
	burst     float64
	networkMS float64
}

var paramFlags paramOptions

func addParamFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&paramFlags.preset, "preset", "p", presets.POC, "Starting preset ("+strings.Join(presets.Names(), ", ")+")")
	f.StringVarP(&paramFlags.file, "file", "f", "", "Read starting params from a JSON or YAML file instead of a preset")
	f.Float64Var(&paramFlags.context, "context", -1, "Override context tokens")
	f.Float64Var(&paramFlags.prompt, "prompt", -1, "Override prompt tokens")
	f.Float64Var(&paramFlags.response, "response", -1, "Override response tokens")
	f.Float64Var(&paramFlags.qps, "qps", -1, "Override arrival rate (queries/sec)")
	f.Float64Var(&paramFlags.hitRate, "hit-rate", -1, "Override cache hit rate (0-1)")
	f.Float64Var(&paramFlags.savings, "savings", -1, "Override cache savings fraction (0-1)")
	f.IntVar(&paramFlags.batch, "batch", -1, "Override batch size")
	f.IntVar(&paramFlags.servers, "servers", -1, "Override server count")
	f.Float64Var(&paramFlags.burst, "burst", -1, "Override burst factor")
	f.Float64Var(&paramFlags.networkMS, "network-ms", -1, "Override one-way network latency (ms)")
}

func resetParamFlags() {
	paramFlags = paramOptions{
		preset:    presets.POC,
		context:   -1,
		prompt:    -1,
		response:  -1,
		qps:       -1,
		hitRate:   -1,
		savings:   -1,
		batch:     -1,
		servers:   -1,
		burst:     -1,
		networkMS: -1,
	}
}

// buildParams resolves the starting point (file or built-in preset) and
// applies any overrides.
func buildParams(o paramOptions) (models.Params, error) {
	var p models.Params
	if o.file != "" {
		loaded, err := loadParamsFile(o.file)
		if err != nil {
			return p, err
		}
		p = loaded
	} else {
		preset, ok := presets.BuiltIn(o.preset)
		if !ok {
			return p, fmt.Errorf("unknown preset %q (choose from %s)", o.preset, strings.Join(presets.Names(), ", "))
		}
		p = preset
	}

	setFloat := func(dst *float64, v float64) {
		if v >= 0 {
			*dst = v
		}
	}
	setFloat(&p.ContextTokens, o.context)
	setFloat(&p.PromptTokens, o.prompt)
	setFloat(&p.ResponseTokens, o.response)
	setFloat(&p.ArrivalRateQPS, o.qps)
	setFloat(&p.CacheHitRate, o.hitRate)
	setFloat(&p.CacheSavingsFraction, o.savings)
	setFloat(&p.BurstFactor, o.burst)
	setFloat(&p.OneWayNetworkMS, o.networkMS)
	if o.batch >= 0 {
		p.BatchSize = o.batch
	}
	if o.servers >= 0 {
		p.ServerCount = o.servers
	}
	return p, nil
}

func loadParamsFile(path string) (models.Params, error) {
	var p models.Params
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read params file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(&p)
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&p)
	}
	if err != nil {
		return p, fmt.Errorf("invalid params file %s: %w", path, err)
	}
	return p, nil
}

// seconds formats a latency, printing ∞ for an unstable queue
func seconds(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.3fs", v)
}

func optionalSeconds(v *float64) string {
	if v == nil {
		return "∞"
	}
	return fmt.Sprintf("%.3fs", *v)
}
