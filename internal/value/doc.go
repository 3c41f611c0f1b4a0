// Package value defines the payloads stored in the shared keyspace and the
// rules for copying them across threads.
//
// A Value never crosses a thread boundary by reference. Copy produces an
// independent duplicate using, in order:
//
//  1. scalars (String, Int, Float, Bool) are immutable and returned as-is;
//  2. a duplicator registered for the value's concrete type with Register;
//  3. the value's own DeepCopy method if it implements DeepCopier;
//  4. otherwise the value's canonical string form, as a String.
//
// List and Dict are the built-in composites. Their string forms use a
// brace-quoted list syntax that ParseList reads back, so a List stored by
// one thread and fetched as text by another round-trips.
package value
