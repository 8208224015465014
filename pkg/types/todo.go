package types

// TodoStatus is the lifecycle state of a task item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// Todo is one item in a session's task list. Content is the imperative
// form ("创建 HTML 结构"); ActiveForm is the present-progressive form
// shown while the item is in progress ("正在创建 HTML 结构").
type Todo struct {
	Content    string     `json:"content"`
	Status     TodoStatus `json:"status"`
	ActiveForm string     `json:"activeForm"`
}

// TodoSummary is the structured result of a todo snapshot write.
type TodoSummary struct {
	Todos      []Todo `json:"todos"`
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
	InProgress int    `json:"in_progress"`
	Pending    int    `json:"pending"`
}

// Summarize counts items per status.
func Summarize(todos []Todo) TodoSummary {
	s := TodoSummary{Todos: todos, Total: len(todos)}
	for _, t := range todos {
		switch t.Status {
		case TodoCompleted:
			s.Completed++
		case TodoInProgress:
			s.InProgress++
		default:
			s.Pending++
		}
	}
	return s
}
