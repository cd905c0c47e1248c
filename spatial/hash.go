package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Mixing primes for the quantized-coordinate hash.
const (
	hashPrimeX = 104729
	hashPrimeY = 104743
	hashPrimeZ = 104759
)

const defaultBucketCount = 1024

// pointEntry is one stored point. Identity is the pair (id, position): two
// entries are the same only if both the id and the coordinates match.
type pointEntry struct {
	point mgl64.Vec3
	id    int
}

// HashTable is an unbounded point set bucketed by a hash over quantized
// coordinates (separate chaining). Ids are assigned monotonically by
// InsertPoint and reset by Clear.
//
// Mutation (InsertPoint, Clear, SetCellSize) is not safe while queries run;
// the caller orders rebuilds before query batches.
type HashTable struct {
	cellSize      [3]float64
	buckets       [][]pointEntry
	numEntries    int
	nextID        int
	loadFactorMax float64
}

// NewHashTable creates an empty table quantized with cubic cells.
func NewHashTable(cellSize float64) *HashTable {
	return &HashTable{
		cellSize:      [3]float64{cellSize, cellSize, cellSize},
		buckets:       make([][]pointEntry, defaultBucketCount),
		loadFactorMax: 10.0,
	}
}

func (t *HashTable) bucketOf(p mgl64.Vec3) int {
	// Quantized coordinates wrap through 32 bits before mixing; negative
	// cells stay well distributed.
	x := uint32(int64(p[0] / t.cellSize[0]))
	y := uint32(int64(p[1] / t.cellSize[1]))
	z := uint32(int64(p[2] / t.cellSize[2]))
	key := hashPrimeX*uint64(x) + hashPrimeY*uint64(y) + hashPrimeZ*uint64(z)
	return int(key % uint64(len(t.buckets)))
}

// Len returns the number of stored points.
func (t *HashTable) Len() int { return t.numEntries }

// NumBuckets returns the current bucket count.
func (t *HashTable) NumBuckets() int { return len(t.buckets) }

// CellSize returns the per-axis quantization.
func (t *HashTable) CellSize() [3]float64 { return t.cellSize }

// InsertPoint stores p under the next id and returns that id.
func (t *HashTable) InsertPoint(p mgl64.Vec3) int {
	id := t.nextID
	t.nextID++
	t.insertEntry(pointEntry{point: p, id: id})
	return id
}

// InsertPoints stores every point, assigning consecutive ids.
func (t *HashTable) InsertPoints(points []mgl64.Vec3) {
	for _, p := range points {
		t.InsertPoint(p)
	}
}

func (t *HashTable) insertEntry(e pointEntry) {
	b := t.bucketOf(e.point)
	t.buckets[b] = append(t.buckets[b], e)
	t.numEntries++
	if float64(t.numEntries) > t.loadFactorMax*float64(len(t.buckets)) {
		t.rehash(len(t.buckets) * 2)
	}
}

// Clear empties the table and resets the id counter to zero.
func (t *HashTable) Clear() {
	for i := range t.buckets {
		t.buckets[i] = t.buckets[i][:0]
	}
	t.numEntries = 0
	t.nextID = 0
}

// SetCellSize changes the quantization and rebuilds the whole table so every
// entry lands in the bucket dictated by the new cell size. Ids are preserved.
func (t *HashTable) SetCellSize(x, y, z float64) {
	t.cellSize = [3]float64{x, y, z}
	t.recomputePointHash()
}

func (t *HashTable) recomputePointHash() {
	entries := t.collectEntries()
	for i := range t.buckets {
		t.buckets[i] = t.buckets[i][:0]
	}
	t.numEntries = 0
	for _, e := range entries {
		t.insertEntry(e)
	}
}

// SetLoadFactorMax caps entries-per-bucket and rehashes under the new cap.
func (t *HashTable) SetLoadFactorMax(lf float64) {
	t.loadFactorMax = lf
	want := len(t.buckets)
	for float64(t.numEntries) > t.loadFactorMax*float64(want) {
		want *= 2
	}
	t.rehash(want)
}

func (t *HashTable) rehash(numBuckets int) {
	entries := t.collectEntries()
	t.buckets = make([][]pointEntry, numBuckets)
	t.numEntries = 0
	for _, e := range entries {
		b := t.bucketOf(e.point)
		t.buckets[b] = append(t.buckets[b], e)
		t.numEntries++
	}
}

func (t *HashTable) collectEntries() []pointEntry {
	entries := make([]pointEntry, 0, t.numEntries)
	for _, b := range t.buckets {
		entries = append(entries, b...)
	}
	return entries
}

// PointsInAABB returns ids of points geometrically inside the box spanned by
// the two corners.
func (t *HashTable) PointsInAABB(corner1, corner2 mgl64.Vec3) []int {
	return t.PointsInAABBInto(nil, corner1, corner2)
}

// PointsInAABBInto appends matching ids to dst after clearing it. The covered
// cells are walked coarsely first (false positives possible), then every
// candidate is filtered per point.
func (t *HashTable) PointsInAABBInto(dst []int, corner1, corner2 mgl64.Vec3) []int {
	dst = dst[:0]

	var lo, hi mgl64.Vec3
	for d := 0; d < 3; d++ {
		lo[d] = math.Min(corner1[d], corner2[d])
		hi[d] = math.Max(corner1[d], corner2[d])
	}

	visited := make(map[int]struct{})
	for x := lo[0]; x < hi[0]+t.cellSize[0]; x += t.cellSize[0] {
		for y := lo[1]; y < hi[1]+t.cellSize[1]; y += t.cellSize[1] {
			for z := lo[2]; z < hi[2]+t.cellSize[2]; z += t.cellSize[2] {
				b := t.bucketOf(mgl64.Vec3{x, y, z})
				if _, seen := visited[b]; seen {
					continue
				}
				visited[b] = struct{}{}
				for _, e := range t.buckets[b] {
					p := e.point
					if p[0] >= lo[0] && p[0] <= hi[0] &&
						p[1] >= lo[1] && p[1] <= hi[1] &&
						p[2] >= lo[2] && p[2] <= hi[2] {
						dst = append(dst, e.id)
					}
				}
			}
		}
	}
	return dst
}

// PointsInSphere returns ids of points strictly within radius of center.
func (t *HashTable) PointsInSphere(center mgl64.Vec3, radius float64) []int {
	return t.PointsInSphereInto(nil, center, radius)
}

// PointsInSphereInto appends matching ids to dst after clearing it. A halo of
// ceil(radius/cellSize) cells around the center is visited; buckets are
// deduplicated so round-off in the probe positions cannot double-report.
func (t *HashTable) PointsInSphereInto(dst []int, center mgl64.Vec3, radius float64) []int {
	dst = dst[:0]

	var span [3]int
	for d := 0; d < 3; d++ {
		span[d] = int(math.Ceil(radius / t.cellSize[d]))
	}
	radiusSqr := radius * radius

	visited := make(map[int]struct{}, (2*span[0]+1)*(2*span[1]+1)*(2*span[2]+1))
	for i := -span[0]; i <= span[0]; i++ {
		for j := -span[1]; j <= span[1]; j++ {
			for k := -span[2]; k <= span[2]; k++ {
				probe := mgl64.Vec3{
					center[0] + t.cellSize[0]*float64(i),
					center[1] + t.cellSize[1]*float64(j),
					center[2] + t.cellSize[2]*float64(k),
				}
				b := t.bucketOf(probe)
				if _, seen := visited[b]; seen {
					continue
				}
				visited[b] = struct{}{}
				for _, e := range t.buckets[b] {
					diff := center.Sub(e.point)
					if diff.Dot(diff) < radiusSqr {
						dst = append(dst, e.id)
					}
				}
			}
		}
	}
	return dst
}

// bucketIndexOfID is a test hook: it returns the bucket currently holding id,
// or -1 when absent.
func (t *HashTable) bucketIndexOfID(id int) int {
	for b, entries := range t.buckets {
		for _, e := range entries {
			if e.id == id {
				return b
			}
		}
	}
	return -1
}

// entryPosition is a test hook: the stored position for id.
func (t *HashTable) entryPosition(id int) (mgl64.Vec3, bool) {
	for _, entries := range t.buckets {
		for _, e := range entries {
			if e.id == id {
				return e.point, true
			}
		}
	}
	return mgl64.Vec3{}, false
}
