// Package sigchan 提供可合并的信号 channel。
package sigchan

// Chan 非阻塞信号 channel：只通知"发生过"，不传数据。
// 缓冲满时 Emit 直接丢弃，连续多次变更合并成一次通知，
// 适合"状态变了、去刷新"类的消费方（读模型刷新就靠它）。
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel，bufferSize 决定最多积压几次未消费的信号
func New(bufferSize int) *Chan {
	return &Chan{
		c: make(chan struct{}, bufferSize),
	}
}

// Emit 发送信号，channel 已满则丢弃（绝不阻塞发送方）
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 返回接收端（select 用）
func (c *Chan) C() <-chan struct{} {
	return c.c
}
