package policy

import (
	"testing"

	"github.com/airssys-go/platform/src/osl/execctx"
	"github.com/airssys-go/platform/src/osl/operations"
)

func req(principal, resource string, op operations.Operation) Request {
	return Request{
		Security: execctx.NewSecurityContext(principal, "sess", nil),
		Op:       op,
		Resource: resource,
	}
}

func TestComposed_DefaultDeny(t *testing.T) {
	c := NewComposed(NewACL())
	op := operations.NewFileReadOperation("/etc/hosts")
	d, _, err := c.Evaluate(req("nobody", "/etc/hosts", op))
	if err != nil {
		t.Fatal(err)
	}
	if d != Deny {
		t.Fatalf("expected Deny, got %v", d)
	}
}

func TestComposed_AllowGranted(t *testing.T) {
	acl := NewACL().Grant("demo", "/etc/hosts")
	c := NewComposed(acl)
	op := operations.NewFileReadOperation("/etc/hosts")
	d, traces, err := c.Evaluate(req("demo", "/etc/hosts", op))
	if err != nil {
		t.Fatal(err)
	}
	if d != Allow {
		t.Fatalf("expected Allow, got %v", d)
	}
	if len(traces) != 1 || traces[0].Decision != Allow {
		t.Fatalf("unexpected traces: %+v", traces)
	}
}

func TestComposed_DeniedByNonMatchingGrant(t *testing.T) {
	acl := NewACL().Grant("demo", "/tmp/*")
	c := NewComposed(acl)
	op := operations.NewFileReadOperation("/etc/hosts")
	d, _, err := c.Evaluate(req("demo", "/etc/hosts", op))
	if err != nil {
		t.Fatal(err)
	}
	if d != Deny {
		t.Fatalf("expected Deny, got %v", d)
	}
}

func TestComposed_ExplicitDenyWinsOverAllow(t *testing.T) {
	allowAll := NewACL().Grant("demo", "*")
	denySecrets := NewACL().Deny("demo", "/secrets/*")
	c := NewComposed(allowAll, denySecrets)

	op := operations.NewFileReadOperation("/secrets/key")
	d, _, err := c.Evaluate(req("demo", "/secrets/key", op))
	if err != nil {
		t.Fatal(err)
	}
	if d != ExplicitDeny {
		t.Fatalf("expected ExplicitDeny, got %v", d)
	}
}

func TestRBAC_RoleGrantsOperationKind(t *testing.T) {
	rbac := NewRBAC()
	role, err := NewRole("operator", "", string(operations.KindProcessSpawn))
	if err != nil {
		t.Fatal(err)
	}
	rbac.AddRole(role).Assign("demo", "operator")

	op := operations.NewSpawnOperation("ls", nil)
	d, _, err := rbac.Evaluate(req("demo", "ls", op))
	if err != nil {
		t.Fatal(err)
	}
	if d != Allow {
		t.Fatalf("expected Allow, got %v", d)
	}
}

func TestRBAC_ConditionMustHold(t *testing.T) {
	rbac := NewRBAC()
	role, err := NewRole("conditional", `attributes["env"] == "staging"`, string(operations.KindProcessSpawn))
	if err != nil {
		t.Fatal(err)
	}
	rbac.AddRole(role).Assign("demo", "conditional")

	sec := execctx.NewSecurityContext("demo", "sess", map[string]string{"env": "production"})
	op := operations.NewSpawnOperation("ls", nil)
	d, _, err := rbac.Evaluate(Request{Security: sec, Op: op, Resource: "ls"})
	if err != nil {
		t.Fatal(err)
	}
	if d != Deny {
		t.Fatalf("expected Deny for mismatched attribute, got %v", d)
	}
}
