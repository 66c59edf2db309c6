package canvas

// ReopenedMarker prefixes the label of a task that was closed and made
// active again.
const ReopenedMarker = "🔄 "

// ApplyTask computes the next state of a task point. prev may be nil for a
// point that never had task data. It returns the new task state, the label
// to show and the icon color.
func ApplyTask(prev *TaskState, status TaskStatus, text, comment string) (TaskState, string, string) {
	reopened := false
	if prev != nil {
		reopened = prev.Reopened
		if prev.Status.Closed() && status == TaskActive {
			reopened = true
		}
	}
	if status.Closed() {
		reopened = false
	}

	label := text
	if reopened {
		label = ReopenedMarker + label
	}
	color, ok := TaskColors[status]
	if !ok {
		color = TaskColors[TaskActive]
	}
	return TaskState{Status: status, Text: text, Comment: comment, Reopened: reopened}, label, color
}
