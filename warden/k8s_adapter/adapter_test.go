package k8sadapter

import (
	"context"
	"testing"

	apiv1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"

	"github.com/nodepulse/nodepulse/warden/domain"
)

func newTestAdapter(objects ...runtime.Object) (*Adapter, *fake.Clientset) {
	client := fake.NewSimpleClientset(objects...)
	adapter := &Adapter{
		client:   client,
		metrics:  metricsfake.NewSimpleClientset(),
		podCache: make(map[string]apiv1.Pod),
		stopCh:   make(chan struct{}),
	}
	return adapter, client
}

// registerEvictionReactor makes the fake clientset honor eviction
// subresource creates by deleting the pod from the tracker.
func registerEvictionReactor(client *fake.Clientset) {
	podsGVR := schema.GroupVersionResource{Version: "v1", Resource: "pods"}
	client.PrependReactor("create", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if action.GetSubresource() != "eviction" {
			return false, nil, nil
		}
		eviction, ok := action.(k8stesting.CreateAction).GetObject().(*policyv1.Eviction)
		if !ok {
			return false, nil, nil
		}
		ns := eviction.Namespace
		if ns == "" {
			ns = action.GetNamespace()
		}
		if err := client.Tracker().Delete(podsGVR, ns, eviction.Name); err != nil {
			return true, nil, err
		}
		return true, nil, nil
	})
}

func testNode(name string, taints ...apiv1.Taint) *apiv1.Node {
	return &apiv1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec:       apiv1.NodeSpec{Taints: taints},
		Status: apiv1.NodeStatus{
			Conditions: []apiv1.NodeCondition{
				{Type: apiv1.NodeReady, Status: apiv1.ConditionTrue},
			},
		},
	}
}

func testPod(name, namespace, node string) *apiv1.Pod {
	return &apiv1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			UID:       types.UID(namespace + "/" + name),
		},
		Spec:   apiv1.PodSpec{NodeName: node},
		Status: apiv1.PodStatus{Phase: apiv1.PodRunning},
	}
}

func TestTaintIsIdempotent(t *testing.T) {
	t.Parallel()

	adapter, client := newTestAdapter(testNode("worker-02"))
	ctx := context.Background()

	taint := domain.DefaultTaint()
	if err := adapter.Taint(ctx, "worker-02", taint); err != nil {
		t.Fatalf("first taint: %v", err)
	}
	if err := adapter.Taint(ctx, "worker-02", taint); err != nil {
		t.Fatalf("second taint: %v", err)
	}

	node, err := client.CoreV1().Nodes().Get(ctx, "worker-02", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if len(node.Spec.Taints) != 1 {
		t.Fatalf("expected 1 taint, got %d", len(node.Spec.Taints))
	}
	if node.Spec.Taints[0].Key != "degradation" || node.Spec.Taints[0].Effect != apiv1.TaintEffectNoSchedule {
		t.Fatalf("unexpected taint %+v", node.Spec.Taints[0])
	}
}

func TestTaintUnknownNode(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter()
	err := adapter.Taint(context.Background(), "nope", domain.DefaultTaint())
	if err != domain.ErrNodeNotFound {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestTaintRemoveTaintRoundTrip(t *testing.T) {
	t.Parallel()

	pre := apiv1.Taint{Key: "dedicated", Value: "batch", Effect: apiv1.TaintEffectNoExecute}
	adapter, client := newTestAdapter(testNode("worker-02", pre))
	ctx := context.Background()

	if err := adapter.Taint(ctx, "worker-02", domain.DefaultTaint()); err != nil {
		t.Fatalf("taint: %v", err)
	}
	if err := adapter.RemoveTaint(ctx, "worker-02", "degradation"); err != nil {
		t.Fatalf("remove taint: %v", err)
	}

	node, err := client.CoreV1().Nodes().Get(ctx, "worker-02", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if len(node.Spec.Taints) != 1 || node.Spec.Taints[0] != pre {
		t.Fatalf("expected only the pre-existing taint, got %+v", node.Spec.Taints)
	}
}

func TestRemoveTaintMissingKeyIsNoop(t *testing.T) {
	t.Parallel()

	adapter, client := newTestAdapter(testNode("worker-02"))
	ctx := context.Background()

	if err := adapter.RemoveTaint(ctx, "worker-02", "degradation"); err != nil {
		t.Fatalf("remove taint: %v", err)
	}

	// no update call should have modified the node
	node, err := client.CoreV1().Nodes().Get(ctx, "worker-02", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if len(node.Spec.Taints) != 0 {
		t.Fatalf("expected no taints, got %+v", node.Spec.Taints)
	}
}

func TestDrainSkipsProtectedNamespaces(t *testing.T) {
	t.Parallel()

	adapter, client := newTestAdapter(
		testNode("worker-02"),
		testPod("app-1", "default", "worker-02"),
		testPod("app-2", "default", "worker-02"),
		testPod("app-3", "payments", "worker-02"),
		testPod("kube-proxy-x", "kube-system", "worker-02"),
	)
	registerEvictionReactor(client)

	evicted, err := adapter.Drain(context.Background(), "worker-02", 30)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if evicted != 3 {
		t.Fatalf("expected 3 evicted pods, got %d", evicted)
	}

	remaining, err := client.CoreV1().Pods(metav1.NamespaceAll).List(context.Background(), metav1.ListOptions{})
	if err != nil {
		t.Fatalf("list pods: %v", err)
	}
	if len(remaining.Items) != 1 || remaining.Items[0].Namespace != "kube-system" {
		t.Fatalf("expected only the kube-system pod to survive, got %+v", remaining.Items)
	}
}

func TestDrainEmptyNodeSucceeds(t *testing.T) {
	t.Parallel()

	adapter, client := newTestAdapter(testNode("worker-02"))
	registerEvictionReactor(client)

	evicted, err := adapter.Drain(context.Background(), "worker-02", 30)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if evicted != 0 {
		t.Fatalf("expected 0 evicted pods, got %d", evicted)
	}
}

func TestDrainUnknownNode(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter()
	_, err := adapter.Drain(context.Background(), "nope", 30)
	if err != domain.ErrNodeNotFound {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestFetchSnapshotListsNodes(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(
		testNode("worker-01"),
		testNode("worker-02", apiv1.Taint{Key: "degradation", Value: "true", Effect: apiv1.TaintEffectNoSchedule}),
		testPod("app-1", "default", "worker-01"),
		testPod("app-2", "default", "worker-01"),
	)

	snaps, err := adapter.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}

	byID := map[string]domain.NodeSnapshot{}
	for _, snap := range snaps {
		byID[snap.ID] = snap
		if len(snap.MissingFields()) != 0 {
			t.Fatalf("snapshot %s has missing fields", snap.ID)
		}
		if snap.Status != "healthy" {
			t.Fatalf("expected healthy status, got %q", snap.Status)
		}
	}
	if byID["worker-01"].PodCount != 2 {
		t.Fatalf("expected 2 pods on worker-01, got %d", byID["worker-01"].PodCount)
	}
	if !byID["worker-02"].HasTaintKey("degradation") {
		t.Fatalf("expected degradation taint on worker-02")
	}
}
