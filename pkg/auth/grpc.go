package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// metadataAuthorization is the incoming/outgoing metadata key carrying the
// bearer token. gRPC metadata keys are lowercase.
const metadataAuthorization = "authorization"

// UnaryServerInterceptor returns a gRPC unary server interceptor that
// verifies the marketplace identity token from incoming request metadata
// and stores the resulting [Identity] in the handler context.
//
// If no authorization metadata is present or the token fails verification,
// the interceptor returns a gRPC Unauthenticated error carrying the
// user-facing message for the failure.
func UnaryServerInterceptor(verifier *Verifier) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := verifyGRPCIdentity(ctx, verifier)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that
// performs the same verification as [UnaryServerInterceptor], wrapping the
// stream so handlers see the identity-enriched context.
func StreamServerInterceptor(verifier *Verifier) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := verifyGRPCIdentity(ss.Context(), verifier)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// UnaryClientInterceptor returns a gRPC unary client interceptor for calls
// to the tenant's gRPC surface. It injects the tenant authorization header
// into outgoing metadata: the composite form when the context identity
// carries the impersonation flag, the service-only form otherwise.
func UnaryClientInterceptor(credential Secret) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx = injectAuthMetadata(ctx, credential)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that
// performs the same header injection as [UnaryClientInterceptor].
func StreamClientInterceptor(credential Secret) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx = injectAuthMetadata(ctx, credential)
		return streamer(ctx, desc, cc, method, opts...)
	}
}

// verifyGRPCIdentity extracts the bearer token from incoming metadata,
// verifies it, and returns a context carrying the resulting identity.
func verifyGRPCIdentity(ctx context.Context, verifier *Verifier) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "missing metadata")
	}

	var token string
	if values := md.Get(metadataAuthorization); len(values) > 0 {
		token = strings.TrimPrefix(values[0], bearerPrefix)
		if token == values[0] {
			token = ""
		}
	}
	if token == "" {
		return ctx, status.Error(codes.Unauthenticated, "missing authorization token")
	}

	identity, err := verifier.Verify(ctx, token)
	if err != nil {
		return ctx, status.Error(codes.Unauthenticated, UserMessage(err))
	}

	return ContextWithIdentity(ctx, identity), nil
}

// injectAuthMetadata appends the tenant authorization header to the
// outgoing metadata. The header is recomputed per call from the context
// identity; existing outgoing metadata is preserved.
func injectAuthMetadata(ctx context.Context, credential Secret) context.Context {
	var identityToken string
	if identity, ok := IdentityFromContext(ctx); ok && identity.Impersonate {
		identityToken = identity.Token
	}
	return metadata.AppendToOutgoingContext(ctx,
		metadataAuthorization, BuildAuthHeader(credential, identityToken))
}

// wrappedServerStream wraps a grpc.ServerStream to override its Context
// method, carrying the identity-enriched context to stream handlers.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the enriched context instead of the original stream
// context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
