package dupes

import (
	"context"
	"sort"
	"unicode/utf8"

	"github.com/Ning0612/Downsort/internal/core/fingerprint"
	"github.com/Ning0612/Downsort/internal/domain"
	"github.com/Ning0612/Downsort/internal/logger"
)

// Bucketer partitions files by exact content
type Bucketer interface {
	Buckets(ctx context.Context, files []domain.FileDescriptor) (*fingerprint.Buckets, error)
}

// Result is the outcome of one classification run
type Result struct {
	Groups   []domain.DuplicateGroup
	Warnings []domain.ScanWarning
	Stats    fingerprint.Stats
}

// ReclaimableBytes returns the bytes held by exact copies across all groups
func (r *Result) ReclaimableBytes() int64 {
	var total int64
	for _, g := range r.Groups {
		total += g.ReclaimableBytes()
	}
	return total
}

// Classifier clusters files by normalized name and exact content, then
// assigns each member a role
type Classifier struct {
	bucketer Bucketer
}

// NewClassifier creates a classifier using b for content comparison
func NewClassifier(b Bucketer) *Classifier {
	return &Classifier{bucketer: b}
}

// Classify returns every cluster with at least two members
func (c *Classifier) Classify(ctx context.Context, files []domain.FileDescriptor) (*Result, error) {
	buckets, err := c.bucketer.Buckets(ctx, files)
	if err != nil {
		return nil, err
	}

	groups := Build(files, buckets)

	logger.Get().Debug("duplicate classification completed",
		"files", len(files),
		"groups", len(groups),
	)

	return &Result{
		Groups:   groups,
		Warnings: buckets.Warnings,
		Stats:    buckets.Stats,
	}, nil
}

// Build clusters files given their content buckets. It performs no I/O.
func Build(files []domain.FileDescriptor, buckets *fingerprint.Buckets) []domain.DuplicateGroup {
	names := make([]Name, len(files))
	for i, f := range files {
		names[i] = Normalize(f.Name)
	}

	// content group id per file, for files byte-identical to at least one other
	contentOf := make(map[int]int)
	uf := newUnionFind(len(files))

	byKey := make(map[string]int)
	for i, n := range names {
		if first, ok := byKey[n.Key]; ok {
			uf.union(first, i)
			continue
		}
		byKey[n.Key] = i
	}
	if buckets != nil {
		for gid, g := range buckets.Groups {
			for _, idx := range g {
				contentOf[idx] = gid
				uf.union(g[0], idx)
			}
		}
	}

	clusters := make(map[int][]int)
	for i := range files {
		root := uf.find(i)
		clusters[root] = append(clusters[root], i)
	}

	c := &cluster{files: files, names: names, contentOf: contentOf}
	if buckets != nil {
		c.failed = buckets.Failed
	}

	var out []domain.DuplicateGroup
	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}
		out = append(out, c.group(members))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalSize != b.TotalSize {
			return a.TotalSize > b.TotalSize
		}
		if a.OriginalName != b.OriginalName {
			return a.OriginalName < b.OriginalName
		}
		return a.Files[0].Path < b.Files[0].Path
	})

	return out
}

// cluster holds the shared lookup tables used while assigning roles
type cluster struct {
	files     []domain.FileDescriptor
	names     []Name
	contentOf map[int]int
	failed    map[int]error
}

func (c *cluster) unreadable(idx int) bool {
	_, ok := c.failed[idx]
	return ok
}

func (c *cluster) sameContent(a, b int) bool {
	ga, okA := c.contentOf[a]
	gb, okB := c.contentOf[b]
	return okA && okB && ga == gb
}

// group assigns roles to one cluster and builds the finalized group
func (c *cluster) group(members []int) domain.DuplicateGroup {
	roles := make(map[int]domain.DuplicateType, len(members))
	anchor := c.best(members)

	if c.pureContent(members) {
		// Identical bytes with unrelated names: no member is more original
		for _, idx := range members {
			roles[idx] = domain.DuplicateExact
		}
	} else {
		original := c.pickOriginal(members)
		if original >= 0 {
			anchor = original
		}
		for _, idx := range members {
			roles[idx] = c.role(idx, original)
		}
	}

	g := domain.DuplicateGroup{
		OriginalName: c.names[anchor].Base,
		Files:        make([]domain.DuplicateFile, 0, len(members)),
	}
	for _, idx := range members {
		g.Files = append(g.Files, domain.DuplicateFile{
			FileDescriptor: c.files[idx],
			DuplicateType:  roles[idx],
		})
		g.TotalSize += c.files[idx].Size
	}

	sort.Slice(g.Files, func(i, j int) bool {
		a, b := g.Files[i], g.Files[j]
		if ra, rb := a.DuplicateType.Rank(), b.DuplicateType.Rank(); ra != rb {
			return ra < rb
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Path < b.Path
	})

	return g
}

// pureContent reports whether every member shares one content group and
// none carries a copy suffix
func (c *cluster) pureContent(members []int) bool {
	for _, idx := range members {
		if c.names[idx].Numbered || !c.sameContent(members[0], idx) {
			return false
		}
	}
	return true
}

// pickOriginal chooses the original among content-matched members, falling
// back to readable members without a copy suffix, then to any readable
// member. Returns -1 when every member is unreadable.
func (c *cluster) pickOriginal(members []int) int {
	var matched, plain, readable []int
	for _, idx := range members {
		if c.unreadable(idx) {
			continue
		}
		readable = append(readable, idx)
		if _, ok := c.contentOf[idx]; ok {
			matched = append(matched, idx)
		}
		if !c.names[idx].Numbered {
			plain = append(plain, idx)
		}
	}

	switch {
	case len(matched) > 0:
		return c.best(matched)
	case len(plain) > 0:
		return c.best(plain)
	case len(readable) > 0:
		return c.best(readable)
	}
	return -1
}

func (c *cluster) role(idx, original int) domain.DuplicateType {
	switch {
	case idx == original:
		return domain.DuplicateOriginal
	case c.unreadable(idx) || original < 0:
		return domain.DuplicateUnknown
	case c.sameContent(idx, original):
		return domain.DuplicateExact
	case c.names[idx].Numbered && c.names[idx].Key == c.names[original].Key:
		return domain.DuplicateNumbered
	}
	return domain.DuplicateUnknown
}

// best applies the selection rule: earliest modified, then shortest name,
// then lexicographically first path
func (c *cluster) best(candidates []int) int {
	best := candidates[0]
	for _, idx := range candidates[1:] {
		if c.before(idx, best) {
			best = idx
		}
	}
	return best
}

func (c *cluster) before(a, b int) bool {
	fa, fb := c.files[a], c.files[b]
	if !fa.Modified.Equal(fb.Modified) {
		return fa.Modified.Before(fb.Modified)
	}
	la, lb := utf8.RuneCountInString(fa.Name), utf8.RuneCountInString(fb.Name)
	if la != lb {
		return la < lb
	}
	return fa.Path < fb.Path
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
