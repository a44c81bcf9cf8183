package fabrik_test

import (
	"fmt"

	fabrik "github.com/fabrik-go/fabrik"
)

func Example() {
	group := fabrik.MustNewDefinition("example.Group", map[string]any{
		"name": "staff",
	})

	user := fabrik.MustNewDefinition("example.User", map[string]any{
		"username": fabrik.NewSequence(func(n int) (any, error) {
			return fmt.Sprintf("user%d", n), nil
		}),
		"email": fabrik.NewLazyAttribute(func(r *fabrik.Resolver) (any, error) {
			username, err := r.Attr("username")
			if err != nil {
				return nil, err
			}
			return username.(string) + "@example.com", nil
		}),
		"group": fabrik.NewSubFactory(group, nil),
		"role":  "member",
	},
		fabrik.WithTrait("admin", fabrik.NewTrait(map[string]any{
			"role": "administrator",
		})),
	)

	instance, err := fabrik.Build(user, nil)
	if err != nil {
		panic(err)
	}
	m := instance.(map[string]any)
	fmt.Println(m["username"], m["email"], m["role"], m["group"].(map[string]any)["name"])

	instance, err = fabrik.Build(user, map[string]any{"admin": true, "group__name": "admins"})
	if err != nil {
		panic(err)
	}
	m = instance.(map[string]any)
	fmt.Println(m["username"], m["email"], m["role"], m["group"].(map[string]any)["name"])

	// Output:
	// user0 user0@example.com member staff
	// user1 user1@example.com administrator admins
}
