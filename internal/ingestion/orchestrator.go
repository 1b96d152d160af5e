package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/codegraph/internal/embed"
	cgerrors "github.com/rohankatakam/codegraph/internal/errors"
	"github.com/rohankatakam/codegraph/internal/graph"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/orphans"
	"github.com/rohankatakam/codegraph/internal/parser"
	"github.com/rohankatakam/codegraph/internal/preserve"
	"github.com/rohankatakam/codegraph/internal/queue"
	"github.com/rohankatakam/codegraph/internal/resolver"
	"github.com/rohankatakam/codegraph/internal/vision"
)

// State names of the re-ingestion machine.
const (
	StateIdle        = "Idle"
	StateCapturing   = "Capturing"
	StateDeleting    = "Deleting"
	StateParsing     = "Parsing"
	StateIngesting   = "Ingesting"
	StateRestoring   = "Restoring"
	StateReEmbedding = "ReEmbedding"
)

// Options parameterize one reingest call.
type Options struct {
	// ProjectName and GitRemote feed the Project node when known.
	ProjectName string
	GitRemote   string
	// GenerateEmbeddings asks the embedding collaborator to fill vectors
	// for changed nodes after restore.
	GenerateEmbeddings bool
	// TransformGraph, when set, maps the built graph before ingestion.
	// Must be pure.
	TransformGraph func(*graph.Graph) *graph.Graph
	// Aliases configures the import resolver.
	Aliases resolver.AliasConfig
	// ParserOpts carries the per-parser knobs.
	ParserOpts parser.Options
	// Concurrency bounds the parse phase.
	Concurrency int
}

// IngestionStats is the user-visible outcome of one reingest call.
type IngestionStats struct {
	Unchanged           int
	Updated             int
	Created             int
	Deleted             int
	NodesCreated        int
	EmbeddingsGenerated int
	EmbeddingsPreserved int
	DurationMs          int64
	Warnings            []string
	Errors              []string
}

// VisionStore is the slice of the graph store the vision pass needs.
type VisionStore interface {
	PendingVisionNodes(ctx context.Context, projectID string, limit int) ([]graph.PendingVisionNode, error)
	SetVisionDescription(ctx context.Context, uuid, description string) error
}

// Orchestrator sequences capture → delete → parse → ingest → restore →
// re-embed. It is the single serialization point for graph-mutating work
// against one project; distinct projects run concurrently.
type Orchestrator struct {
	store       graph.Store
	builder     *graph.Builder
	preserver   *preserve.Preserver
	embedder    embed.Provider // nil when no provider is configured
	describer   vision.Describer
	visionStore VisionStore
	orphans     *orphans.Tracker
	logger      *logrus.Logger

	mu           sync.Mutex
	projectLocks map[string]*sync.Mutex
	busy         bool
	state        string
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(store graph.Store, builder *graph.Builder, preserver *preserve.Preserver, embedder embed.Provider, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		store:        store,
		builder:      builder,
		preserver:    preserver,
		embedder:     embedder,
		logger:       logger,
		projectLocks: make(map[string]*sync.Mutex),
		state:        StateIdle,
	}
}

// WithVision attaches the vision collaborator; media and image-only
// documents flagged during parsing get described after each reingest.
func (o *Orchestrator) WithVision(store VisionStore, describer vision.Describer) *Orchestrator {
	o.visionStore = store
	o.describer = describer
	return o
}

// WithOrphanTracker attaches orphan bookkeeping: files ingested under the
// reserved project id are tracked, capped and eventually evicted.
func (o *Orchestrator) WithOrphanTracker(t *orphans.Tracker) *Orchestrator {
	o.orphans = t
	return o
}

// EvictStaleOrphans removes orphan files past the retention horizon from
// the tracker and deletes their subgraphs.
func (o *Orchestrator) EvictStaleOrphans(ctx context.Context, now time.Time) (int, error) {
	if o.orphans == nil {
		return 0, nil
	}
	evicted, err := o.orphans.EvictStale(now)
	if err != nil {
		return 0, err
	}
	if len(evicted) == 0 {
		return 0, nil
	}
	deleted, err := o.store.DeleteNodesForFiles(ctx, evicted, ids.OrphanProjectID)
	if err != nil {
		return 0, cgerrors.Collaborator("graph store", fmt.Errorf("delete evicted orphans: %w", err))
	}
	o.logger.WithFields(logrus.Fields{
		"files": len(evicted),
		"nodes": deleted,
	}).Info("evicted stale orphan subgraphs")
	return len(evicted), nil
}

// HandleBatch adapts Reingest to the change queue: a batch arriving while a
// reingest is running is refused so the queue re-enqueues it.
func (o *Orchestrator) HandleBatch(opts Options) queue.Handler {
	return func(batch []queue.Change) bool {
		o.mu.Lock()
		if o.busy {
			o.mu.Unlock()
			return false
		}
		o.busy = true
		o.mu.Unlock()

		defer func() {
			o.mu.Lock()
			o.busy = false
			o.mu.Unlock()
		}()

		stats, err := o.Reingest(context.Background(), batch, opts)
		if err != nil {
			o.logger.WithError(err).Error("reingest failed")
		} else {
			o.logger.WithFields(logrus.Fields{
				"created":   stats.Created,
				"updated":   stats.Updated,
				"deleted":   stats.Deleted,
				"unchanged": stats.Unchanged,
				"nodes":     stats.NodesCreated,
				"ms":        stats.DurationMs,
			}).Info("reingest completed")
		}
		return true
	}
}

func (o *Orchestrator) setState(state string) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
	o.logger.WithField("state", state).Debug("orchestrator state")
}

// State reports the current machine state.
func (o *Orchestrator) State() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) lockProject(projectID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.projectLocks[projectID]
	if !ok {
		l = &sync.Mutex{}
		o.projectLocks[projectID] = l
	}
	return l
}

// Reingest processes one batch of changes. Changes are grouped by project;
// groups run concurrently, each group strictly ordered: metadata capture
// precedes deletion, deletion precedes insertion, restore precedes
// re-embedding. A failing step surfaces on the returned stats; the
// orchestrator never swallows a store error.
func (o *Orchestrator) Reingest(ctx context.Context, changes []queue.Change, opts Options) (*IngestionStats, error) {
	start := time.Now()
	stats := &IngestionStats{}
	defer func() { stats.DurationMs = time.Since(start).Milliseconds() }()

	if len(changes) == 0 {
		return stats, nil
	}

	// 1. Group by project id; orphans go to the reserved id.
	groups := make(map[string][]queue.Change)
	for _, c := range changes {
		pid := c.ProjectID
		if pid == "" {
			pid = ids.OrphanProjectID
		}
		groups[pid] = append(groups[pid], c)
	}

	var statsMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for projectID, group := range groups {
		g.Go(func() error {
			lock := o.lockProject(projectID)
			lock.Lock()
			defer lock.Unlock()
			return o.reingestProject(gctx, projectID, group, opts, stats, &statsMu)
		})
	}
	err := g.Wait()
	o.setState(StateIdle)
	if err != nil {
		statsMu.Lock()
		stats.Errors = append(stats.Errors, err.Error())
		statsMu.Unlock()
		return stats, err
	}
	return stats, nil
}

func (o *Orchestrator) reingestProject(ctx context.Context, projectID string, group []queue.Change, opts Options, stats *IngestionStats, statsMu *sync.Mutex) error {
	// Partition the group. Unchanged updated files (identical raw bytes)
	// drop out before any destructive step.
	var deleted, remaining []queue.Change
	for _, c := range group {
		if c.ChangeType == queue.ChangeDeleted {
			deleted = append(deleted, c)
		} else {
			remaining = append(remaining, c)
		}
	}

	affectedSet := make(map[string]bool)
	for _, c := range group {
		affectedSet[c.Path] = true
	}

	kept := remaining[:0]
	if len(remaining) > 0 {
		paths := make([]string, 0, len(remaining))
		for _, c := range remaining {
			paths = append(paths, c.Path)
		}
		prior, err := o.store.FileHashes(ctx, paths, projectID)
		if err != nil {
			return cgerrors.Collaborator("graph store", fmt.Errorf("fetch prior file hashes: %w", err))
		}
		for _, c := range remaining {
			if c.ChangeType == queue.ChangeUpdated {
				content, rerr := os.ReadFile(c.Path)
				if rerr == nil && prior[c.Path] != "" && ids.RawContentHash(content) == prior[c.Path] {
					statsMu.Lock()
					stats.Unchanged++
					statsMu.Unlock()
					delete(affectedSet, c.Path)
					continue
				}
			}
			kept = append(kept, c)
		}
	}
	remaining = kept

	if len(remaining) == 0 && len(deleted) == 0 {
		return nil
	}

	affected := make([]string, 0, len(affectedSet))
	for p := range affectedSet {
		affected = append(affected, p)
	}

	// Orphan bookkeeping: track survivors, forget deletions. A full
	// tracker refuses new files, which drops them from this batch.
	if projectID == ids.OrphanProjectID && o.orphans != nil {
		now := time.Now()
		for _, c := range deleted {
			_ = o.orphans.Forget(c.Path)
		}
		tracked := remaining[:0]
		for _, c := range remaining {
			if err := o.orphans.Touch(c.Path, now); err != nil {
				statsMu.Lock()
				stats.Warnings = append(stats.Warnings, fmt.Sprintf("orphan tracking %s: %v", c.Path, err))
				statsMu.Unlock()
				continue
			}
			tracked = append(tracked, c)
		}
		remaining = tracked
	}

	// 2. Capture metadata before anything is destroyed.
	o.setState(StateCapturing)
	captured, err := o.preserver.Capture(ctx, affected, projectID)
	if err != nil {
		return cgerrors.Collaborator("graph store", fmt.Errorf("capture metadata: %w", err))
	}

	// 3. Delete affected subgraphs.
	o.setState(StateDeleting)
	deletedCount, err := o.store.DeleteNodesForFiles(ctx, affected, projectID)
	if err != nil {
		return cgerrors.Collaborator("graph store", fmt.Errorf("delete subgraphs: %w", err))
	}
	o.logger.WithField("nodes", deletedCount).Debug("deleted affected subgraphs")

	statsMu.Lock()
	stats.Deleted += len(deleted)
	for _, c := range remaining {
		if c.ChangeType == queue.ChangeCreated {
			stats.Created++
		} else {
			stats.Updated++
		}
	}
	statsMu.Unlock()

	if len(remaining) == 0 {
		return nil
	}

	// 4. Rebuild from the shortest common directory.
	o.setState(StateParsing)
	paths := make([]string, 0, len(remaining))
	for _, c := range remaining {
		paths = append(paths, c.Path)
	}
	root := ShortestCommonDir(paths)
	include := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			rel = p
		}
		include = append(include, rel)
	}

	buildOpts := graph.BuildOptions{
		ProjectID:   projectID,
		ProjectName: opts.ProjectName,
		GitRemote:   opts.GitRemote,
		Existing:    preserve.UUIDMapping(captured),
		Aliases:     opts.Aliases,
		ParserOpts:  opts.ParserOpts,
		Concurrency: opts.Concurrency,
	}
	built, meta, err := o.builder.Build(ctx, root, include, buildOpts)
	if err != nil {
		// Build-level failures are invariant violations (per-file parse
		// problems surface as warnings instead).
		return cgerrors.Invariant("graph build", err)
	}
	statsMu.Lock()
	stats.Warnings = append(stats.Warnings, meta.Warnings...)
	statsMu.Unlock()

	// 5. Optional caller transform before ingestion.
	if opts.TransformGraph != nil {
		built = opts.TransformGraph(built)
	}

	// 6. Upsert into the store.
	o.setState(StateIngesting)
	upserted, err := o.store.UpsertGraph(ctx, built)
	if err != nil {
		return cgerrors.Collaborator("graph store", fmt.Errorf("upsert graph: %w", err))
	}
	statsMu.Lock()
	stats.NodesCreated += upserted.NodesCreated
	statsMu.Unlock()

	// 7. Restore preserved metadata onto rebuilt nodes.
	o.setState(StateRestoring)
	provider, model := "", ""
	if o.embedder != nil {
		provider, model, _ = o.embedder.Info()
	}
	restored, err := o.preserver.Restore(ctx, captured, provider, model)
	if err != nil {
		return cgerrors.Collaborator("graph store", fmt.Errorf("restore metadata: %w", err))
	}
	statsMu.Lock()
	stats.EmbeddingsPreserved += restored
	statsMu.Unlock()

	// Vision pass: failures surface as warnings on the node's behalf,
	// never as batch errors.
	if o.describer != nil && o.visionStore != nil {
		warnings := o.describePendingMedia(ctx, projectID)
		if len(warnings) > 0 {
			statsMu.Lock()
			stats.Warnings = append(stats.Warnings, warnings...)
			statsMu.Unlock()
		}
	}

	// 8. Re-embed nodes whose content hash changed.
	if opts.GenerateEmbeddings && o.embedder != nil {
		o.setState(StateReEmbedding)
		generated, err := o.embedder.GenerateFor(ctx, projectID)
		if err != nil {
			return cgerrors.Collaborator("embedding provider", err)
		}
		statsMu.Lock()
		stats.EmbeddingsGenerated += generated
		statsMu.Unlock()
	}

	return nil
}

// describePendingMedia runs the vision collaborator over nodes flagged for
// analysis.
func (o *Orchestrator) describePendingMedia(ctx context.Context, projectID string) []string {
	var warnings []string
	pending, err := o.visionStore.PendingVisionNodes(ctx, projectID, 50)
	if err != nil {
		return []string{fmt.Sprintf("list pending vision nodes: %v", err)}
	}
	for _, node := range pending {
		content, err := os.ReadFile(node.AbsolutePath)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("vision read %s: %v", node.AbsolutePath, err))
			continue
		}
		instruction := "Describe this image concisely for a code search index."
		if node.Format == "pdf" {
			instruction = "Extract the readable text from this document."
		}
		description, err := o.describer.Describe(ctx, content, mimeTypeFor(node.Format), instruction)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("vision describe %s: %v", node.AbsolutePath, err))
			continue
		}
		if err := o.visionStore.SetVisionDescription(ctx, node.UUID, description); err != nil {
			warnings = append(warnings, fmt.Sprintf("vision store %s: %v", node.AbsolutePath, err))
		}
	}
	return warnings
}

func mimeTypeFor(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// IndexProject performs a full initial ingestion of a project tree.
func (o *Orchestrator) IndexProject(ctx context.Context, root, projectName string, opts Options) (*IngestionStats, error) {
	files, err := WalkSourceFiles(root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	changes := make([]queue.Change, 0, len(files))
	projectID := ids.ProjectID(projectName)
	for _, rel := range files {
		changes = append(changes, queue.Change{
			Path:       filepath.Join(root, rel),
			ChangeType: queue.ChangeCreated,
			ProjectID:  projectID,
		})
	}

	o.logger.WithFields(logrus.Fields{
		"project": projectName,
		"files":   len(changes),
	}).Info("indexing project")

	if opts.ProjectName == "" {
		opts.ProjectName = projectName
	}
	return o.Reingest(ctx, changes, opts)
}
