package workspace

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Load reads a workspace configuration file:
//
//	package_path     = ["/abs/root1", "/abs/root2"]
//	deleted_packages = ["some/pkg"]
//
// package_path is required and ordered; deleted_packages is optional.
func Load(path string) (*Snapshot, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing workspace file %s: %w", path, diags)
	}

	content, diags := file.Body.Content(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "package_path", Required: true},
			{Name: "deleted_packages"},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("decoding workspace file %s: %w", path, diags)
	}

	roots, err := stringList(content.Attributes["package_path"])
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("workspace file %s: package_path must not be empty", path)
	}

	var deleted []string
	if attr, ok := content.Attributes["deleted_packages"]; ok {
		deleted, err = stringList(attr)
		if err != nil {
			return nil, err
		}
	}

	return NewSnapshot(roots, deleted), nil
}

func stringList(attr *hcl.Attribute) ([]string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating %s: %w", attr.Name, diags)
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("%s must be a list of strings", attr.Name)
	}
	var out []string
	for it := val.ElementIterator(); it.Next(); {
		_, item := it.Element()
		if item.Type() != cty.String {
			return nil, fmt.Errorf("%s must contain only strings, got %s", attr.Name, item.Type().FriendlyName())
		}
		out = append(out, item.AsString())
	}
	return out, nil
}
