//go:build !protogen

package catalog

// NewGRPCProvider is unavailable without generated protobuf stubs; callers
// fall back to the database provider.
func NewGRPCProvider(_ string) (Provider, error) {
	return nil, nil
}
