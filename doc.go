// Package fabrik builds complex object graphs declaratively for test setup.
//
// # Overview
//
// A factory describes an object's fields as a mix of literals and deferred
// computations (declarations). Building an instance resolves those
// computations lazily, in dependency order, with cycle detection, then runs
// post-generation hooks against the constructed object. Nested declarations
// recurse into sub-builds linked into a parent chain.
//
// The engine is organized around four pieces:
//
//  1. Declarations: deferred-value producers attached to fields
//  2. DeclarationSet: a named collection of declarations plus deep context
//  3. Resolver / BuildStep: the lazy, cycle-safe evaluation of one build
//  4. Post-generation: ordered hooks run after the object exists
//
// # Basic usage
//
// Define a factory and build from it:
//
//	user := fabrik.MustNewDefinition("app.UserFactory", map[string]any{
//	    "name": fabrik.NewSequence(func(n int) (any, error) {
//	        return fmt.Sprintf("user%d", n), nil
//	    }),
//	    "email": fabrik.NewLazyAttribute(func(r *fabrik.Resolver) (any, error) {
//	        name, err := r.Attr("name")
//	        if err != nil {
//	            return nil, err
//	        }
//	        return name.(string) + "@example.com", nil
//	    }),
//	    "active": true,
//	})
//
//	instance, err := fabrik.Build(user, map[string]any{"active": false})
//
// Fields resolve on first pull: email's evaluation transitively triggers
// name's, each field computed at most once per build. A field reading itself
// (directly or through other fields) fails with a CyclicDefinitionError.
//
// # Deep context
//
// Override keys containing the reserved "__" separator address a
// sub-parameter of a field rather than the field itself:
//
//	fabrik.Build(post, map[string]any{
//	    "author__name": "Alice", // context for the author SubFactory
//	})
//
// Deep context whose root names no declared field is an
// InvalidDeclarationError listing every offending key.
//
// # Nested factories
//
// SubFactory recurses into another factory, linking the nested build step to
// its parent; SelfAttribute paths with leading dots read attributes back off
// that chain:
//
//	post := fabrik.MustNewDefinition("app.PostFactory", map[string]any{
//	    "author": fabrik.NewSubFactory(user, nil),
//	    "signature": fabrik.NewSelfAttribute("author.name"),
//	})
//
// Factories may also be referenced by a registry path ("app.UserFactory")
// registered through Register, resolved once and cached.
//
// # Post-generation
//
// Post declarations run strictly after instantiation, in the order they
// were created: NewPostGeneration calls a function, NewRelatedFactory builds
// a related object (skipped when a value is supplied explicitly), and
// NewPostGenerationMethodCall invokes a method on the instance.
//
// # Traits and parameters
//
// A Trait gates a bundle of field overrides on a boolean field:
//
//	admin := fabrik.NewTrait(map[string]any{
//	    "role":  "admin",
//	    "email": fabrik.NewSelfAttribute("name"),
//	})
//	user := fabrik.MustNewDefinition("app.UserFactory", fields,
//	    fabrik.WithTrait("is_admin", admin))
//
//	fabrik.Build(user, map[string]any{"is_admin": true})
//
// # Observers
//
// Observers wrap builds, field evaluations and post-generation hooks
// middleware-style; the extensions subpackage provides slog-based logging
// and build tracing. Nested builders inherit their parent's observers.
//
// # Concurrency
//
// One build call owns one BuildStep/Resolver tree; execution is synchronous
// and single-threaded, recursing as deep as the declared object graph.
// Process-wide creation counters and the factory registry carry no internal
// locking; concurrent use requires external synchronization.
package fabrik
