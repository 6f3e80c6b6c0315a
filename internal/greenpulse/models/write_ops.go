package models

// WriteOpKind 原子写操作类型
type WriteOpKind string

const (
	OpCreate    WriteOpKind = "create"
	OpIncrement WriteOpKind = "increment"
)

// WriteOp 原子批量写入中的一个操作
// Path 为文档路径（集合/文档 交替），长度必须为偶数
type WriteOp struct {
	Kind       WriteOpKind
	Path       []string
	Data       map[string]interface{} // OpCreate 的文档内容
	Increments map[string]float64     // OpIncrement 的数值增量
	Set        map[string]interface{} // OpIncrement 同时覆盖的字段
}

// CreateOp 创建新文档
func CreateOp(path []string, data map[string]interface{}) WriteOp {
	return WriteOp{Kind: OpCreate, Path: path, Data: data}
}

// IncrementOp 对已有（或不存在则创建的）文档做数值自增
func IncrementOp(path []string, increments map[string]float64, set map[string]interface{}) WriteOp {
	return WriteOp{Kind: OpIncrement, Path: path, Increments: increments, Set: set}
}
