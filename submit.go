package ocgfx

import (
	"github.com/gogpu/ocgfx/driver"
)

// submitter is the one place ocgfx waits on the GPU. Every upload, layout
// transition and frame goes through it.
type submitter struct {
	dev   driver.Device
	queue driver.Queue
	pool  driver.CommandPool
}

func (s *submitter) submit(infos ...driver.SubmitInfo) error {
	return classify(s.queue.Submit(infos), "submit")
}

// submitAndWait submits and blocks until the queue is idle.
func (s *submitter) submitAndWait(infos ...driver.SubmitInfo) error {
	if err := s.submit(infos...); err != nil {
		return err
	}
	return classify(s.queue.WaitIdle(), "wait for queue")
}

// waitDeviceIdle blocks until the device has finished all work.
func (s *submitter) waitDeviceIdle() error {
	return classify(s.dev.WaitIdle(), "wait for device")
}

// record allocates a command buffer and records into it. The buffer is
// reusable unless oneTime is set.
func (s *submitter) record(oneTime bool, fn func(cb driver.CommandBuffer)) (driver.CommandBuffer, error) {
	cb, err := s.pool.AllocateCommandBuffer()
	if err != nil {
		return nil, classify(err, "allocate command buffer")
	}
	if err := cb.Begin(oneTime); err != nil {
		cb.Destroy()
		return nil, classify(err, "begin command buffer")
	}
	fn(cb)
	if err := cb.End(); err != nil {
		cb.Destroy()
		return nil, classify(err, "end command buffer")
	}
	return cb, nil
}

// oneShot records fn into a transient command buffer, submits it and
// waits. The buffer is freed only after the wait.
func (s *submitter) oneShot(fn func(cb driver.CommandBuffer)) error {
	cb, err := s.record(true, fn)
	if err != nil {
		return err
	}
	defer cb.Destroy()
	return s.submitAndWait(driver.SubmitInfo{CommandBuffers: []driver.CommandBuffer{cb}})
}
