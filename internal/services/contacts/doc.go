// Package contacts edits the caller's contact list in the shared graph.
//
// Entries live at CONTACTS/{self}/{contact} and are written only by self.
// Adding a contact who already lists the caller accepts at once; otherwise
// the entry stays pending until Accept.
package contacts
