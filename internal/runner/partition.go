package runner

import "github.com/garagon/sifter/internal/types"

// Shard is an independently schedulable subset of the resolved files.
type Shard struct {
	ID    int
	Files []types.ResolvedFile
}

// Partition distributes files round-robin over at most processCount shards.
// It never produces more shards than files, and an empty file set yields a
// single empty shard. Shard IDs are dense and start at 0.
func Partition(files []types.ResolvedFile, processCount int) []Shard {
	n := max(min(processCount, len(files)), 1)
	shards := make([]Shard, n)
	for i := range shards {
		shards[i].ID = i
		shards[i].Files = make([]types.ResolvedFile, 0, (len(files)+n-1)/n)
	}
	for i, f := range files {
		shards[i%n].Files = append(shards[i%n].Files, f)
	}
	return shards
}
