package vecqueue_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hupe1980/vecqueue"
	"github.com/hupe1980/vecqueue/blobstore"
)

// Example_drain demonstrates staging operations and draining them.
func Example_drain() {
	dir, err := os.MkdirTemp("", "vecqueue-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	q, err := vecqueue.Open(ctx, dir)
	if err != nil {
		log.Fatal(err)
	}
	defer q.Close()

	_ = q.PushInsert(ctx, "doc-1", []float32{0.1, 0.2}, vecqueue.WithTimestamp(10))
	_ = q.PushInsert(ctx, "doc-2", []float32{0.3, 0.4}, vecqueue.WithTimestamp(20))
	_ = q.PushDelete(ctx, "doc-2", vecqueue.WithTimestamp(30))

	for item, err := range q.DrainQueues(ctx, 100, 0).All() {
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(item)
	}
	fmt.Println(q.InsertLen(), q.DeleteLen())
	// Output:
	// insert(doc-1)@10
	// delete(doc-2)@30
	// 0 0
}

// Example_lookup demonstrates resolving the state of an id.
func Example_lookup() {
	dir, err := os.MkdirTemp("", "vecqueue-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	q, err := vecqueue.Open(ctx, dir)
	if err != nil {
		log.Fatal(err)
	}
	defer q.Close()

	_ = q.PushInsert(ctx, "doc", []float32{1, 2, 3}, vecqueue.WithTimestamp(100))
	_ = q.PushDelete(ctx, "doc", vecqueue.WithTimestamp(100))

	st, err := q.GetVectorWithTimestamp(ctx, "doc")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(st.Vector, st.InsertTS, st.DeleteTS, st.Exists)
	// Output: [1 2 3] 100 100 false
}

// Example_backup demonstrates copying live inserts between queues.
func Example_backup() {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	open := func() (*vecqueue.PersistentQueue, func()) {
		dir, err := os.MkdirTemp("", "vecqueue-example")
		if err != nil {
			log.Fatal(err)
		}
		q, err := vecqueue.Open(ctx, dir)
		if err != nil {
			log.Fatal(err)
		}
		return q, func() {
			_ = q.Close()
			_ = os.RemoveAll(dir)
		}
	}

	src, closeSrc := open()
	defer closeSrc()
	_ = src.PushInsert(ctx, "a", []float32{1}, vecqueue.WithTimestamp(1))
	_ = src.PushInsert(ctx, "b", []float32{2}, vecqueue.WithTimestamp(2))

	if _, err := src.Backup(ctx, bs, "nightly", vecqueue.WithBackupCompression(vecqueue.CompressionZstd)); err != nil {
		log.Fatal(err)
	}

	dst, closeDst := open()
	defer closeDst()
	n, err := dst.Restore(ctx, bs, "nightly")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(n, dst.InsertLen())
	// Output: 2 2
}
