package locks

import "github.com/dreamware/threadkit/internal/goid"

func currentForTest() goid.ID { return goid.Current() }
