package app

// DropPosition says which side of the target a dragged chapter lands on.
type DropPosition string

const (
	DropBefore DropPosition = "before"
	DropAfter  DropPosition = "after"
)

// Reorder computes a new chapter order from a drag gesture. It is a pure
// function with no failure mode: dragging a chapter onto itself, or
// referencing an id that is not in the order, returns the order unchanged.
// The target's index is computed on the sequence with the dragged id
// already removed, which absorbs the index shift when the dragged chapter
// originally preceded the target.
func Reorder(order []int, draggedID, targetID int, pos DropPosition) []int {
	result := make([]int, len(order))
	copy(result, order)
	if draggedID == targetID {
		return result
	}

	draggedIdx := indexOf(result, draggedID)
	if draggedIdx < 0 || indexOf(result, targetID) < 0 {
		return result
	}

	reduced := append(result[:draggedIdx:draggedIdx], result[draggedIdx+1:]...)
	targetIdx := indexOf(reduced, targetID)
	insertAt := targetIdx
	if pos == DropAfter {
		insertAt = targetIdx + 1
	}

	out := make([]int, 0, len(order))
	out = append(out, reduced[:insertAt]...)
	out = append(out, draggedID)
	out = append(out, reduced[insertAt:]...)
	return out
}

func indexOf(order []int, id int) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}
