package pbd

import "github.com/pthm-cable/lancet/taskgraph"

func newGraphForTest() *taskgraph.Graph {
	return taskgraph.New("testSource", "testSink")
}
