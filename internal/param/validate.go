package param

import "strings"

// scope tracks the classes declared so far in one class body.
type scope struct {
	classes map[string]*Class
	outer   *scope
}

func (s *scope) resolve(name string) *Class {
	key := strings.ToLower(name)
	for cur := s; cur != nil; cur = cur.outer {
		if c, ok := cur.classes[key]; ok {
			return c
		}
	}
	return nil
}

// validate checks duplicate classes, parent references and delete targets.
// Deletes and tolerated duplicates are applied to the tree in place.
func validate(root *Class, opts Options) error {
	return validateClass(root, nil, opts)
}

func validateClass(c *Class, outer *scope, opts Options) error {
	sc := &scope{classes: map[string]*Class{}, outer: outer}
	kept := c.Members[:0:0]

	for _, m := range c.Members {
		switch m.Kind {
		case MemberClass:
			key := strings.ToLower(m.Name)
			if prev, ok := sc.classes[key]; ok && !prev.Extern && !m.Class.Extern {
				if !opts.AllowDuplicateClasses {
					return errorf(m.Pos, "class %s already defined in %s at %s", m.Name, c.Name, prev.Pos)
				}
				kept = removeClass(kept, key)
			} else if ok && prev.Extern && !m.Class.Extern {
				kept = removeClass(kept, key)
			} else if ok && m.Class.Extern {
				// forward declaration after the definition
				continue
			}

			if p := m.Class.Parent; p != "" && !opts.AllowMissingParents {
				if sc.resolve(p) == nil {
					return errorf(m.Pos, "class %s inherits from undefined class %s", m.Name, p)
				}
			}
			if !m.Class.Extern {
				if err := validateClass(m.Class, sc, opts); err != nil {
					return err
				}
			}
			sc.classes[key] = m.Class

		case MemberDelete:
			key := strings.ToLower(m.Name)
			if _, ok := sc.classes[key]; !ok {
				if !opts.AllowMissingDeleteTargets {
					return errorf(m.Pos, "delete of undefined class %s in %s", m.Name, c.Name)
				}
				kept = append(kept, m)
				continue
			}
			delete(sc.classes, key)
			kept = removeClass(kept, key)
			// keep the statement so that derived configs still see it
			kept = append(kept, m)
			continue
		}
		kept = append(kept, m)
	}

	c.Members = kept
	return nil
}

func removeClass(members []Member, key string) []Member {
	out := members[:0]
	for _, m := range members {
		if m.Kind == MemberClass && strings.ToLower(m.Name) == key {
			continue
		}
		out = append(out, m)
	}
	return out
}
