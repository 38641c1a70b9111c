package splitters

import (
	"fmt"

	"docqa/internal/docqa/interfaces"
)

// New builds the splitter named by strategy ("recursive" or "token").
func New(strategy string, chunkSize, chunkOverlap int, encoding string) (interfaces.Splitter, error) {
	switch strategy {
	case "", "recursive":
		return NewRecursiveSplitter(chunkSize, chunkOverlap)
	case "token":
		return NewTokenSplitter(chunkSize, chunkOverlap, encoding)
	default:
		return nil, fmt.Errorf("unknown splitter strategy: %s", strategy)
	}
}
