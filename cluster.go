package vthread

// Cluster is a virtual thread that also drives a list of child threads.
//
// On each tick the cluster first steps every child present when the tick
// started, then its own stack. Children added during a tick are first stepped
// on the following tick. Finished children are skipped but stay in the list
// until the cluster is reset.
type Cluster struct {
	Thread
	children        []child
	waitForChildren bool
}

type child struct {
	thread Runnable
	run    Frame
}

// ClusterOption configures a Cluster.
type ClusterOption func(*Cluster)

// WaitForChildren sets whether the cluster completes only once all of its
// children finished. It is true by default.
func WaitForChildren(wait bool) ClusterOption {
	return func(c *Cluster) { c.waitForChildren = wait }
}

// SetWaitForChildren changes whether the cluster waits for its children.
func (c *Cluster) SetWaitForChildren(wait bool) { c.waitForChildren = wait }

// AddChild appends a child thread running root. The child begins on its first
// step, which happens on the cluster's next tick.
func (c *Cluster) AddChild(thread Runnable, root Frame) {
	c.children = append(c.children, child{thread: thread, run: thread.Start(root)})
}

// Children returns the child threads in the order they were added.
func (c *Cluster) Children() []Runnable {
	threads := make([]Runnable, len(c.children))
	for i, ch := range c.children {
		threads[i] = ch.thread
	}
	return threads
}

// Tick steps the children, then the cluster's own stack. When the cluster
// waits for its children, it reports completion only once its stack drained
// and every child finished.
//
// While the children step, Runtime.Running returns the child being stepped,
// and whatever thread was running before the call in between children; the
// cluster itself is the running thread only while its own stack steps.
func (c *Cluster) Tick() bool {
	c.check(c.state == Running, "tick", "thread is %s", c.state)
	c.stepChildren()

	done := c.Thread.Tick()
	if done && c.waitForChildren {
		for _, ch := range c.children {
			if !ch.thread.IsFinished() {
				return false
			}
		}
	}
	return done
}

func (c *Cluster) stepChildren() {
	defer c.LockState("parent's state must not change while its children are stepping").Unlock()

	n := len(c.children)
	for i := 0; i < n; i++ {
		ch := c.children[i]
		if ch.thread.IsFinished() {
			continue
		}
		ch.run.Next()
	}
}

// Start returns the frame driving the whole lifecycle of the cluster; see
// Thread.Start.
func (c *Cluster) Start(root Frame) Frame {
	return &runner{thread: c, root: root}
}

// Reset moves a Finished cluster back to None and drops its children.
func (c *Cluster) Reset() {
	c.Thread.Reset()
	clear(c.children)
	c.children = c.children[:0]
}
