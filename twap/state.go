package twap

// State 表示一次 TWAP 执行的生命周期阶段。
type State string

const (
	// StateCreated 已登记，执行循环尚未启动
	StateCreated State = "CREATED"
	// StateRunning 执行循环运行中
	StateRunning State = "RUNNING"
	// StateCompleted 计划内的全部周期已耗尽
	StateCompleted State = "COMPLETED"
	// StateCancelled 在耗尽前被取消
	StateCancelled State = "CANCELLED"
	// StateFailed 执行循环内部故障（与单笔子单失败无关）
	StateFailed State = "FAILED"
)

// transition 状态转换
type transition struct {
	from State
	to   State
}

// 合法的状态转换；终态不再转出。
var legalTransitions = map[transition]bool{
	{StateCreated, StateRunning}:   true,
	{StateRunning, StateCompleted}: true,
	{StateRunning, StateCancelled}: true,
	{StateRunning, StateFailed}:    true,
	{StateCreated, StateFailed}:    true,
}

// canTransition 验证状态转换是否合法；相同状态幂等放行。
func canTransition(from, to State) bool {
	if from == to {
		return true
	}
	return legalTransitions[transition{from: from, to: to}]
}

// IsTerminal 判断是否是终态。
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}
