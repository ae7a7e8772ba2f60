package harness

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/hubtest/internal/contexthub"
	"github.com/roach88/hubtest/internal/txn"
)

//go:embed schema.cue
var schemaCUE string

// Scenario defines a hub test scenario: a hub, the nanoapps already on it,
// and a flow of load, unload and query operations with their expected
// outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Hub is the target hub. Defaults to DefaultHub.
	Hub HubSpec `yaml:"hub,omitempty"`

	// Preloaded nanoapps are installed before the flow starts.
	Preloaded []App `yaml:"preloaded,omitempty"`

	// Flow contains the operations to run, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and hub state.
	// Supported types: outcome_count, final_apps
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// HubSpec identifies the hub under test.
type HubSpec struct {
	ID   int32  `yaml:"id"`
	Name string `yaml:"name"`
}

// DefaultHub is used when a scenario names no hub.
var DefaultHub = contexthub.HubInfo{ID: 1, Name: "simulated"}

// Info returns the hub descriptor, falling back to DefaultHub.
func (h HubSpec) Info() contexthub.HubInfo {
	info := contexthub.HubInfo{ID: h.ID, Name: h.Name}
	if info.ID == 0 && info.Name == "" {
		return DefaultHub
	}
	return info
}

// App is a nanoapp ID and version, used for preloads and expected lists.
type App struct {
	AppID   uint64 `yaml:"app_id" json:"app_id"`
	Version uint32 `yaml:"version" json:"version"`
}

// State converts the app to the state the hub reports for it.
func (a App) State() contexthub.NanoAppState {
	return contexthub.NanoAppState{ID: a.AppID, Version: a.Version, Enabled: true}
}

// Operation names accepted in FlowStep.Op.
const (
	OpLoad         = "load"
	OpLoadAssert   = "load_assert"
	OpUnload       = "unload"
	OpUnloadAssert = "unload_assert"
	OpQuery        = "query"
	OpVersion      = "version"
)

// FlowStep is one operation against the hub.
type FlowStep struct {
	// Op selects the operation (see the Op constants).
	Op string `yaml:"op"`

	// AppID is the nanoapp to load, unload or look up.
	AppID uint64 `yaml:"app_id,omitempty"`

	// Version is written into the generated image for load steps.
	Version uint32 `yaml:"version,omitempty"`

	// BinaryHex overrides the generated image with raw bytes.
	BinaryHex string `yaml:"binary_hex,omitempty"`

	// Corrupt sends an image with an invalid header.
	Corrupt bool `yaml:"corrupt,omitempty"`

	// Behavior scripts the hub's answer to this step's transaction.
	// If nil, the hub answers immediately.
	Behavior *BehaviorSpec `yaml:"behavior,omitempty"`

	// Expect specifies the expected result.
	// If nil, only an unexpected abort fails the step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Kind is the transaction kind this step submits.
func (s FlowStep) Kind() contexthub.Kind {
	switch s.Op {
	case OpLoad, OpLoadAssert:
		return contexthub.KindLoad
	case OpUnload, OpUnloadAssert:
		return contexthub.KindUnload
	case OpQuery, OpVersion:
		return contexthub.KindQuery
	}
	return 0
}

// BehaviorSpec mirrors simhub.Behavior in scenario files.
type BehaviorSpec struct {
	Result      int32         `yaml:"result,omitempty"`
	Delay       time.Duration `yaml:"delay,omitempty"`
	Drop        bool          `yaml:"drop,omitempty"`
	NilResponse bool          `yaml:"nil_response,omitempty"`
}

// ExpectClause specifies the expected result of a step. Only set fields are
// checked.
type ExpectClause struct {
	// OK is the boolean result of load and unload steps.
	OK *bool `yaml:"ok,omitempty"`

	// Aborted expects the step to report a fatal failure.
	Aborted bool `yaml:"aborted,omitempty"`

	// Reason is the classified outcome of the step's transaction.
	Reason string `yaml:"reason,omitempty"`

	// Code is the hub result code.
	Code *int32 `yaml:"code,omitempty"`

	// Version is the result of a version step.
	Version *uint32 `yaml:"version,omitempty"`

	// Apps is the result of a query step, in order.
	Apps []App `yaml:"apps,omitempty"`
}

// Assertion validates the trace or the final hub state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "outcome_count": Count transactions with a given reason (and kind)
	// - "final_apps": Compare the hub's nanoapps after the flow
	Type string `yaml:"type"`

	// Reason and Kind select transactions (used by outcome_count).
	Reason string `yaml:"reason,omitempty"`
	Kind   string `yaml:"kind,omitempty"`

	// Count is the expected number of transactions (used by outcome_count).
	Count int `yaml:"count,omitempty"`

	// Apps is the expected final list, in load order (used by final_apps).
	Apps []App `yaml:"apps,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcomeCount = "outcome_count"
	AssertFinalApps    = "final_apps"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails schema validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// The schema sees the raw document, so it checks the spelling and
	// ranges the Go types cannot express.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateSchema checks a decoded YAML document against #Scenario.
func validateSchema(raw any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Scenario"))
	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// validateScenario checks the rules the schema cannot: cross-field
// combinations of step options and expectations.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}

	if s.Description == "" {
		return errors.New("description is required")
	}

	if len(s.Flow) == 0 {
		return errors.New("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(i int, step FlowStep) error {
	if step.Kind() == 0 {
		return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
	}

	isLoad := step.Kind() == contexthub.KindLoad
	if !isLoad && (step.BinaryHex != "" || step.Corrupt || step.Version != 0) {
		return fmt.Errorf("flow[%d]: binary_hex, corrupt and version only apply to load steps", i)
	}
	if step.BinaryHex != "" && step.Corrupt {
		return fmt.Errorf("flow[%d]: binary_hex and corrupt are mutually exclusive", i)
	}
	if step.Behavior != nil && step.Behavior.Delay < 0 {
		return fmt.Errorf("flow[%d].behavior: delay must be non-negative", i)
	}

	e := step.Expect
	if e == nil {
		return nil
	}
	if e.Reason != "" {
		if _, err := txn.ParseReason(e.Reason); err != nil {
			return fmt.Errorf("flow[%d].expect: %w", i, err)
		}
	}
	if e.OK != nil && step.Op != OpLoad && step.Op != OpUnload {
		return fmt.Errorf("flow[%d].expect: ok only applies to load and unload steps", i)
	}
	if e.Version != nil && step.Op != OpVersion {
		return fmt.Errorf("flow[%d].expect: version only applies to version steps", i)
	}
	if e.Apps != nil && step.Op != OpQuery {
		return fmt.Errorf("flow[%d].expect: apps only applies to query steps", i)
	}
	if e.Aborted && (step.Op == OpLoad || step.Op == OpUnload) && e.Reason != string(txn.ReasonNullHandle) {
		return fmt.Errorf("flow[%d].expect: plain %s steps only abort on a null handle", i, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutcomeCount:
		if _, err := txn.ParseReason(a.Reason); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Kind != "" {
			if _, err := contexthub.ParseKind(a.Kind); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	case AssertFinalApps:
		// An empty list asserts an empty hub.
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
