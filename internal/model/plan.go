// Package model defines the normalized, enriched representation of a
// PostgreSQL EXPLAIN plan: the tree of Nodes under a Plan envelope, plus
// the per-node Worker, Buffers, Sort, JIT and WAL sub-structures.
package model

import "time"

// EstimateDirection classifies how a node's actual row count compared to
// the planner's estimate.
type EstimateDirection string

const (
	EstimateNone  EstimateDirection = "none"
	EstimateOver  EstimateDirection = "over"
	EstimateUnder EstimateDirection = "under"
)

// SpaceType is the storage medium a sort or hash spilled into.
type SpaceType string

const (
	SpaceMemory SpaceType = "Memory"
	SpaceDisk   SpaceType = "Disk"
)

// Buffers holds the ten per-node block counters PostgreSQL's BUFFERS
// modifier emits. Node.ExclusiveBuffers holds the self-only (minus
// children) variant.
type Buffers struct {
	SharedHitBlocks     int64
	SharedReadBlocks    int64
	SharedDirtiedBlocks int64
	SharedWrittenBlocks int64
	LocalHitBlocks      int64
	LocalReadBlocks     int64
	LocalDirtiedBlocks  int64
	LocalWrittenBlocks  int64
	TempReadBlocks      int64
	TempWrittenBlocks   int64
}

// Total sums every counter, used for "heaviest buffer user" style ranking.
func (b Buffers) Total() int64 {
	return b.SharedHitBlocks + b.SharedReadBlocks + b.SharedDirtiedBlocks + b.SharedWrittenBlocks +
		b.LocalHitBlocks + b.LocalReadBlocks + b.LocalDirtiedBlocks + b.LocalWrittenBlocks +
		b.TempReadBlocks + b.TempWrittenBlocks
}

// Sub subtracts another Buffers value field-by-field, used to derive
// exclusive (self) counters from inclusive (self + descendants) ones.
func (b Buffers) Sub(o Buffers) Buffers {
	return Buffers{
		SharedHitBlocks:     b.SharedHitBlocks - o.SharedHitBlocks,
		SharedReadBlocks:    b.SharedReadBlocks - o.SharedReadBlocks,
		SharedDirtiedBlocks: b.SharedDirtiedBlocks - o.SharedDirtiedBlocks,
		SharedWrittenBlocks: b.SharedWrittenBlocks - o.SharedWrittenBlocks,
		LocalHitBlocks:      b.LocalHitBlocks - o.LocalHitBlocks,
		LocalReadBlocks:     b.LocalReadBlocks - o.LocalReadBlocks,
		LocalDirtiedBlocks:  b.LocalDirtiedBlocks - o.LocalDirtiedBlocks,
		LocalWrittenBlocks:  b.LocalWrittenBlocks - o.LocalWrittenBlocks,
		TempReadBlocks:      b.TempReadBlocks - o.TempReadBlocks,
		TempWrittenBlocks:   b.TempWrittenBlocks - o.TempWrittenBlocks,
	}
}

// Add sums two Buffers field-by-field.
func (b Buffers) Add(o Buffers) Buffers {
	return Buffers{
		SharedHitBlocks:     b.SharedHitBlocks + o.SharedHitBlocks,
		SharedReadBlocks:    b.SharedReadBlocks + o.SharedReadBlocks,
		SharedDirtiedBlocks: b.SharedDirtiedBlocks + o.SharedDirtiedBlocks,
		SharedWrittenBlocks: b.SharedWrittenBlocks + o.SharedWrittenBlocks,
		LocalHitBlocks:      b.LocalHitBlocks + o.LocalHitBlocks,
		LocalReadBlocks:     b.LocalReadBlocks + o.LocalReadBlocks,
		LocalDirtiedBlocks:  b.LocalDirtiedBlocks + o.LocalDirtiedBlocks,
		LocalWrittenBlocks:  b.LocalWrittenBlocks + o.LocalWrittenBlocks,
		TempReadBlocks:      b.TempReadBlocks + o.TempReadBlocks,
		TempWrittenBlocks:   b.TempWrittenBlocks + o.TempWrittenBlocks,
	}
}

// IOTiming holds the I/O Read/Write Time modifiers (ms), emitted when
// track_io_timing is on.
type IOTiming struct {
	ReadMs  float64
	WriteMs float64
}

// Sub subtracts another IOTiming.
func (t IOTiming) Sub(o IOTiming) IOTiming {
	return IOTiming{ReadMs: t.ReadMs - o.ReadMs, WriteMs: t.WriteMs - o.WriteMs}
}

// Add sums two IOTiming values.
func (t IOTiming) Add(o IOTiming) IOTiming {
	return IOTiming{ReadMs: t.ReadMs + o.ReadMs, WriteMs: t.WriteMs + o.WriteMs}
}

// WAL holds the WAL Records/Bytes/FPI counters.
type WAL struct {
	Records int64
	Bytes   int64
	FPI     int64
}

// Sort describes a "Sort Method: ... (Memory|Disk): NkB" attribute.
type Sort struct {
	Method      string
	SpaceUsedKB int64
	SpaceType   SpaceType
}

// SortGroups describes a "Full-sort Groups" / "Pre-sorted Groups" line.
type SortGroups struct {
	GroupCount int64
	Methods    []string
	AvgKB      float64
	PeakKB     float64
}

// JIT captures the JIT: block (Options{}, Timing{}, plus generic extras).
type JIT struct {
	Options map[string]any
	Timing  map[string]float64
	Extra   map[string]any
}

// Worker is one parallel worker's per-node statistics.
type Worker struct {
	WorkerNumber      int
	ActualStartupTime *float64
	ActualTotalTime   *float64
	ActualRows        *int64
	ActualLoops       *int64
	JIT               *JIT
	Extra             map[string]any
}

// Trigger is an entry from the root Triggers list.
type Trigger struct {
	Name     string
	TimeMs   float64
	Calls    int64
	Relation string
}

// Node is one operator in the plan tree.
type Node struct {
	NodeType string

	StartupCost *float64
	TotalCost   *float64
	PlanRows    *int64
	PlanWidth   *int64

	ActualStartupTime *float64
	ActualTotalTime   *float64
	ActualRows        *int64
	ActualLoops       *int64
	NeverExecuted     bool

	RelationName string
	Schema       string
	Alias        string
	IndexName    string
	IndexCond    string
	JoinType     string
	HashCond     string
	MergeCond    string
	Filter       string
	JoinFilter   string
	Output       []string

	ParentRelationship string
	SubplanName        string

	RowsRemovedByFilter     *int64
	RowsRemovedByJoinFilter *int64

	Sort            *Sort
	FullSortGroups  *SortGroups
	PreSortedGroups *SortGroups
	SortKey         []string
	PresortedKey    []string

	Buffers  Buffers
	WAL      *WAL
	IOTiming *IOTiming
	JIT      *JIT
	Settings map[string]string

	WorkersPlanned  *int64
	WorkersLaunched *int64
	Workers         []*Worker

	Children []*Node

	// Derived fields, written only by internal/enrich.
	NodeID                         int
	ExclusiveCost                  float64
	ExclusiveDuration              float64
	PlannerEstimateFactor          *float64
	PlannerEstimateDirection       EstimateDirection
	ActualRowsRevised              *int64
	PlanRowsRevised                *int64
	RowsRemovedByFilterRevised     *int64
	RowsRemovedByJoinFilterRevised *int64
	ExclusiveBuffers               Buffers
	ExclusiveIOTiming              IOTiming
	WorkersPlannedByGather         *int64

	Extra map[string]any
}

// MaxBlocks records the tree-wide maxima over buffer classes. A zero
// maximum is represented by a nil pointer so it can be omitted entirely.
type MaxBlocks struct {
	Shared *int64
	Temp   *int64
	Local  *int64
}

// Content is the `content` envelope around the root plan node.
type Content struct {
	Plan         *Node
	Triggers     []Trigger
	JIT          *JIT
	MaxRows      int64
	MaxCost      float64
	MaxTotalCost float64
	MaxDuration  float64
	MaxBlocks    MaxBlocks
	Settings     map[string]string
}

// Plan is the root envelope returned by ParseSource.
type Plan struct {
	ID        string
	Name      string
	CreatedOn time.Time
	Query     string

	Content Content
	CTEs    []*Node

	PlanningTimeMs  *float64
	ExecutionTimeMs *float64

	IsAnalyze bool
	IsVerbose bool
}
