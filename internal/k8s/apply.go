package k8s

import (
	"context"
	"fmt"
	"io"
	"strings"

	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/yaml"
)

// decodeManifest splits a multi-document YAML manifest into
// unstructured objects, skipping empty documents.
func decodeManifest(manifest string) ([]*unstructured.Unstructured, error) {
	decoder := yaml.NewYAMLOrJSONDecoder(strings.NewReader(manifest), 4096)
	var objs []*unstructured.Unstructured
	for {
		var obj unstructured.Unstructured
		err := decoder.Decode(&obj)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		if len(obj.Object) == 0 {
			continue
		}
		if obj.GetKind() == "" {
			return nil, fmt.Errorf("manifest document has no kind")
		}
		objs = append(objs, obj.DeepCopy())
	}
	return objs, nil
}

// Apply applies a multi-document YAML manifest with create-or-update
// semantics.
func (c *Client) Apply(ctx context.Context, manifest string) error {
	objs, err := decodeManifest(manifest)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		if err := c.applyObject(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) applyObject(ctx context.Context, obj *unstructured.Unstructured) error {
	ri := c.resourceFor(obj)
	_, err := ri.Create(ctx, obj, metav1.CreateOptions{})
	if err == nil {
		return nil
	}
	if !errors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to apply %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}
	existing, err := ri.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("failed to fetch existing %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}
	obj.SetResourceVersion(existing.GetResourceVersion())
	if _, err := ri.Update(ctx, obj, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}
	return nil
}

// DryRunApply validates a manifest with a server-side dry-run create.
// The server checks admission and schema without persisting anything.
// Returns the API error message on rejection.
func (c *Client) DryRunApply(ctx context.Context, manifest string) error {
	objs, err := decodeManifest(manifest)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		ri := c.resourceFor(obj)
		_, err := ri.Create(ctx, obj, metav1.CreateOptions{DryRun: []string{metav1.DryRunAll}})
		if err != nil && !errors.IsAlreadyExists(err) {
			return fmt.Errorf("dry-run of %s/%s rejected: %w", obj.GetKind(), obj.GetName(), err)
		}
	}
	return nil
}

// DeleteManifest deletes every object of a multi-document manifest.
// Missing objects are tolerated.
func (c *Client) DeleteManifest(ctx context.Context, manifest string) error {
	objs, err := decodeManifest(manifest)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		ri := c.resourceFor(obj)
		if err := ri.Delete(ctx, obj.GetName(), metav1.DeleteOptions{}); err != nil && !errors.IsNotFound(err) {
			return fmt.Errorf("failed to delete %s/%s: %w", obj.GetKind(), obj.GetName(), err)
		}
	}
	return nil
}

func (c *Client) resourceFor(obj *unstructured.Unstructured) resourceInterface {
	gvr := gvrForKind(obj.GroupVersionKind())
	if ns := obj.GetNamespace(); ns != "" {
		return c.dynamic.Resource(gvr).Namespace(ns)
	}
	return c.dynamic.Resource(gvr)
}

type resourceInterface interface {
	Create(ctx context.Context, obj *unstructured.Unstructured, options metav1.CreateOptions, subresources ...string) (*unstructured.Unstructured, error)
	Update(ctx context.Context, obj *unstructured.Unstructured, options metav1.UpdateOptions, subresources ...string) (*unstructured.Unstructured, error)
	Get(ctx context.Context, name string, options metav1.GetOptions, subresources ...string) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, name string, options metav1.DeleteOptions, subresources ...string) error
}
